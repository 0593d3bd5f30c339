// Package stripe implements the payment provider interface on top of the
// Stripe API.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/selimekin/storefront/internal/provider"
)

// Provider is a Stripe-backed payment provider.
type Provider struct {
	api           *client.API
	webhookSecret string
}

// NewProvider creates a Stripe provider with the given API key and webhook
// signing secret.
func NewProvider(apiKey, webhookSecret string) *Provider {
	api := &client.API{}
	api.Init(apiKey, nil)

	return &Provider{
		api:           api,
		webhookSecret: webhookSecret,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stripe"
}

// CreateIntent creates a Stripe PaymentIntent.
func (p *Provider) CreateIntent(ctx context.Context, input *provider.CreateIntentInput) (*provider.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(input.Amount),
		Currency: stripe.String(input.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe payment intent: %w", err)
	}

	return fromPaymentIntent(pi), nil
}

// RetrieveIntent fetches a Stripe PaymentIntent.
func (p *Provider) RetrieveIntent(ctx context.Context, intentID string) (*provider.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve stripe payment intent: %w", err)
	}

	return fromPaymentIntent(pi), nil
}

// Refund creates a Stripe refund against the intent's charge.
func (p *Provider) Refund(ctx context.Context, input *provider.RefundInput) (*provider.RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(input.IntentID),
	}
	params.Context = ctx
	if input.Amount > 0 {
		params.Amount = stripe.Int64(input.Amount)
	}
	if input.Reason != "" {
		params.AddMetadata("reason", input.Reason)
	}

	refund, err := p.api.Refunds.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe refund: %w", err)
	}

	return &provider.RefundResult{
		RefundID: refund.ID,
		Status:   string(refund.Status),
	}, nil
}

// VerifyWebhook validates the Stripe-Signature header and decodes the event.
func (p *Provider) VerifyWebhook(payload []byte, signature string) (*provider.WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify stripe webhook: %w", err)
	}

	evt := &provider.WebhookEvent{Type: string(event.Type)}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode stripe payment intent event: %w", err)
		}
		evt.IntentID = pi.ID
		if pi.LatestCharge != nil {
			evt.TransactionID = pi.LatestCharge.ID
		}
	}

	return evt, nil
}

// fromPaymentIntent normalizes a Stripe PaymentIntent.
func fromPaymentIntent(pi *stripe.PaymentIntent) *provider.Intent {
	intent := &provider.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       normalizeStatus(pi.Status),
	}
	if pi.LatestCharge != nil {
		intent.TransactionID = pi.LatestCharge.ID
	}
	return intent
}

// normalizeStatus collapses Stripe intent statuses into the provider's
// three-state model.
func normalizeStatus(status stripe.PaymentIntentStatus) string {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return provider.IntentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return provider.IntentStatusFailed
	default:
		return provider.IntentStatusPending
	}
}
