package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	apperrors "github.com/selimekin/storefront/pkg/errors"
)

var breakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "payment_provider_breaker_state",
		Help: "Current state of the payment provider circuit breaker (0=closed, 1=half-open, 2=open)",
	},
	[]string{"provider"},
)

func init() {
	prometheus.MustRegister(breakerState)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerConfig holds circuit breaker tuning for provider calls.
type BreakerConfig struct {
	// MaxRequests is the number of requests allowed in the half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing counts.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// FailureRatio trips the breaker when failures/requests reaches it.
	FailureRatio float64

	// MinRequests is the minimum sample size before the ratio is evaluated.
	MinRequests uint32
}

// DefaultBreakerConfig returns the default breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// BreakerProvider wraps a Provider so that network calls go through a circuit
// breaker. An open circuit surfaces as a 503 instead of hammering a failing
// gateway. VerifyWebhook is pure computation and bypasses the breaker.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewBreakerProvider wraps the given provider with a circuit breaker.
func NewBreakerProvider(inner Provider, cfg BreakerConfig, logger *slog.Logger) *BreakerProvider {
	name := inner.Name()

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("payment provider breaker state change",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	}

	breakerState.WithLabelValues(name).Set(0)

	return &BreakerProvider{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

// Name returns the wrapped provider's name.
func (p *BreakerProvider) Name() string {
	return p.inner.Name()
}

// CreateIntent creates a payment intent through the circuit breaker.
func (p *BreakerProvider) CreateIntent(ctx context.Context, input *CreateIntentInput) (*Intent, error) {
	result, err := p.breaker.Execute(func() (any, error) {
		return p.inner.CreateIntent(ctx, input)
	})
	if err != nil {
		return nil, p.mapError(ctx, err)
	}
	return result.(*Intent), nil
}

// RetrieveIntent fetches an intent through the circuit breaker.
func (p *BreakerProvider) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	result, err := p.breaker.Execute(func() (any, error) {
		return p.inner.RetrieveIntent(ctx, intentID)
	})
	if err != nil {
		return nil, p.mapError(ctx, err)
	}
	return result.(*Intent), nil
}

// Refund refunds a payment through the circuit breaker.
func (p *BreakerProvider) Refund(ctx context.Context, input *RefundInput) (*RefundResult, error) {
	result, err := p.breaker.Execute(func() (any, error) {
		return p.inner.Refund(ctx, input)
	})
	if err != nil {
		return nil, p.mapError(ctx, err)
	}
	return result.(*RefundResult), nil
}

// VerifyWebhook delegates to the wrapped provider without the breaker.
func (p *BreakerProvider) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	return p.inner.VerifyWebhook(payload, signature)
}

func (p *BreakerProvider) mapError(ctx context.Context, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		p.logger.WarnContext(ctx, "payment provider circuit open",
			slog.String("provider", p.inner.Name()),
		)
		return apperrors.ServiceUnavailable("payment provider is temporarily unavailable")
	}
	return err
}
