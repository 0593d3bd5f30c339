package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/selimekin/storefront/internal/domain"
	"github.com/selimekin/storefront/internal/event"
	"github.com/selimekin/storefront/internal/provider"
	"github.com/selimekin/storefront/internal/repository"
	apperrors "github.com/selimekin/storefront/pkg/errors"
)

// PaymentService implements the payment gateway flows: intent creation,
// synchronous confirmation, webhook processing, and refunds.
type PaymentService struct {
	orders   repository.OrderRepository
	carts    repository.CartRepository
	orderSvc *OrderService
	gateway  provider.Provider
	producer *event.Producer
	logger   *slog.Logger
	currency string
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	orders repository.OrderRepository,
	carts repository.CartRepository,
	orderSvc *OrderService,
	gateway provider.Provider,
	producer *event.Producer,
	logger *slog.Logger,
	currency string,
) *PaymentService {
	return &PaymentService{
		orders:   orders,
		carts:    carts,
		orderSvc: orderSvc,
		gateway:  gateway,
		producer: producer,
		logger:   logger,
		currency: currency,
	}
}

// CreateIntentResult is returned from CreateIntent.
type CreateIntentResult struct {
	OrderID      string `json:"order_id"`
	OrderNumber  string `json:"order_number"`
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// CreateIntent builds a card order from the user's cart and opens a payment
// intent for its total with the gateway. Stock is committed by the order
// creation; the payment flows never touch inventory again.
func (s *PaymentService) CreateIntent(ctx context.Context, userID string, input *CreateOrderInput) (*CreateIntentResult, error) {
	input.PaymentMethod = domain.PaymentMethodCard

	order, err := s.orderSvc.CreateOrder(ctx, userID, input)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, &provider.CreateIntentInput{
		Amount:   order.Pricing.Total,
		Currency: s.currency,
		Metadata: map[string]string{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
			"user_id":      userID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	if err := s.orders.SetPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		return nil, fmt.Errorf("attach payment intent: %w", err)
	}

	s.logger.InfoContext(ctx, "payment intent created",
		slog.String("order_id", order.ID),
		slog.String("intent_id", intent.ID),
		slog.Int64("amount", order.Pricing.Total),
	)

	return &CreateIntentResult{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       order.Pricing.Total,
		Currency:     s.currency,
	}, nil
}

// Confirm checks the intent's status with the gateway and finalizes the
// order. Finalization is a conditional update on payment_status, so a race
// with the webhook resolves to exactly one winner and the loser observes an
// already-finalized order.
func (s *PaymentService) Confirm(ctx context.Context, userID, orderID, intentID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if order.UserID != userID || order.Payment.IntentID != intentID {
		return nil, apperrors.NotFound("order", orderID)
	}

	intent, err := s.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("retrieve payment intent: %w", err)
	}

	if intent.Status != provider.IntentStatusSucceeded {
		if err := s.orders.MarkPaymentFailed(ctx, orderID); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark payment failed",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
		}
		s.producer.PaymentFailed(ctx, event.PaymentData{
			OrderID:  orderID,
			IntentID: intentID,
			Amount:   order.Pricing.Total,
		})
		return nil, apperrors.PaymentFailed("payment was not completed by the provider")
	}

	finalized, err := s.finalize(ctx, order, intent.TransactionID)
	if err != nil {
		return nil, err
	}
	if finalized {
		s.clearCartAfterPayment(ctx, order.UserID, order.ID)
	}

	updated, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}

	return updated, nil
}

// WebhookResult reports how a webhook event was handled.
type WebhookResult struct {
	EventType string `json:"event_type"`
	OrderID   string `json:"order_id,omitempty"`
	Handled   bool   `json:"handled"`
}

// HandleWebhook verifies the payload signature and applies the event.
// Verification failures fail closed. Success events run through the same
// conditional finalize as Confirm, so redelivered webhooks are no-ops.
// Unknown event types are accepted and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	evt, err := s.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		s.logger.WarnContext(ctx, "webhook verification failed",
			slog.String("error", err.Error()),
		)
		return nil, apperrors.InvalidInput("webhook signature verification failed")
	}

	result := &WebhookResult{EventType: evt.Type}

	switch evt.Type {
	case provider.EventIntentSucceeded:
		order, err := s.orders.GetByIntentID(ctx, evt.IntentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				s.logger.WarnContext(ctx, "webhook for unknown intent",
					slog.String("intent_id", evt.IntentID),
				)
				return result, nil
			}
			return nil, fmt.Errorf("get order by intent: %w", err)
		}
		result.OrderID = order.ID

		finalized, err := s.finalize(ctx, order, evt.TransactionID)
		if err != nil {
			return nil, err
		}
		if finalized {
			s.clearCartAfterPayment(ctx, order.UserID, order.ID)
		}
		result.Handled = finalized

	case provider.EventIntentFailed:
		order, err := s.orders.GetByIntentID(ctx, evt.IntentID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return result, nil
			}
			return nil, fmt.Errorf("get order by intent: %w", err)
		}
		result.OrderID = order.ID

		if err := s.orders.MarkPaymentFailed(ctx, order.ID); err != nil {
			return nil, fmt.Errorf("mark payment failed: %w", err)
		}
		s.producer.PaymentFailed(ctx, event.PaymentData{
			OrderID:  order.ID,
			IntentID: evt.IntentID,
			Amount:   order.Pricing.Total,
		})
		result.Handled = true

	default:
		s.logger.DebugContext(ctx, "ignoring webhook event",
			slog.String("event_type", evt.Type),
		)
	}

	return result, nil
}

// RefundInput holds the parameters for an admin refund.
type RefundInput struct {
	OrderID string `json:"order_id" validate:"required,uuid"`
	// Amount in cents; zero means the full order total.
	Amount int64  `json:"amount,omitempty" validate:"min=0"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// Refund issues a provider refund for a completed payment and records it.
// The order moves to cancelled but inventory is untouched; a separate
// cancellation transition handles stock restoration when wanted.
func (s *PaymentService) Refund(ctx context.Context, input *RefundInput) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", input.OrderID)
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}

	if order.Payment.Status != domain.PaymentStatusCompleted {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot refund a payment with status %s", order.Payment.Status))
	}

	amount := input.Amount
	if amount == 0 {
		amount = order.Pricing.Total
	}
	if amount > order.Pricing.Total {
		return nil, apperrors.InvalidInput("refund amount exceeds order total")
	}

	refund, err := s.gateway.Refund(ctx, &provider.RefundInput{
		IntentID: order.Payment.IntentID,
		Amount:   amount,
		Reason:   input.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("provider refund: %w", err)
	}

	note := fmt.Sprintf("Refund %s issued", refund.RefundID)
	if input.Reason != "" {
		note = fmt.Sprintf("%s: %s", note, input.Reason)
	}

	if err := s.orders.MarkRefunded(ctx, order.ID, note); err != nil {
		return nil, fmt.Errorf("mark order refunded: %w", err)
	}

	s.producer.PaymentRefunded(ctx, event.PaymentData{
		OrderID:       order.ID,
		IntentID:      order.Payment.IntentID,
		TransactionID: refund.RefundID,
		Amount:        amount,
	})

	s.logger.InfoContext(ctx, "payment refunded",
		slog.String("order_id", order.ID),
		slog.String("refund_id", refund.RefundID),
		slog.Int64("amount", amount),
	)

	updated, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}

	return updated, nil
}

// finalize runs the conditional payment completion. Reports whether this
// call won the update; false means the payment already left the pending
// state.
func (s *PaymentService) finalize(ctx context.Context, order *domain.Order, transactionID string) (bool, error) {
	ok, err := s.orders.FinalizePayment(ctx, order.ID, transactionID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("finalize payment: %w", err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "payment already finalized",
			slog.String("order_id", order.ID),
		)
		return false, nil
	}

	s.producer.PaymentSucceeded(ctx, event.PaymentData{
		OrderID:       order.ID,
		IntentID:      order.Payment.IntentID,
		TransactionID: transactionID,
		Amount:        order.Pricing.Total,
	})

	s.logger.InfoContext(ctx, "payment completed",
		slog.String("order_id", order.ID),
		slog.String("transaction_id", transactionID),
	)

	return true, nil
}

// clearCartAfterPayment clears any cart left behind; failure is logged only.
func (s *PaymentService) clearCartAfterPayment(ctx context.Context, userID, orderID string) {
	if err := s.carts.Delete(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after payment",
			slog.String("order_id", orderID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
