package provider

import (
	"context"
)

// Intent status values, normalized across providers.
const (
	IntentStatusPending   = "pending"
	IntentStatusSucceeded = "succeeded"
	IntentStatusFailed    = "failed"
)

// Webhook event types, normalized across providers.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

// Intent is a provider payment intent. The ClientSecret is handed to the
// frontend so it can complete the payment directly with the provider.
type Intent struct {
	ID            string
	ClientSecret  string
	Amount        int64
	Currency      string
	Status        string
	TransactionID string
}

// CreateIntentInput holds the parameters for creating a payment intent.
type CreateIntentInput struct {
	Amount   int64
	Currency string
	Metadata map[string]string
}

// RefundInput holds the parameters for refunding a completed payment.
type RefundInput struct {
	IntentID string
	Amount   int64
	Reason   string
}

// RefundResult holds the result of a refund operation.
type RefundResult struct {
	RefundID string
	Status   string
}

// WebhookEvent is a verified, decoded provider webhook notification.
type WebhookEvent struct {
	Type          string
	IntentID      string
	TransactionID string
}

// Provider defines the interface for payment gateway integrations.
type Provider interface {
	// Name returns the provider name (e.g., "mock", "stripe").
	Name() string

	// CreateIntent creates a payment intent for the given amount.
	CreateIntent(ctx context.Context, input *CreateIntentInput) (*Intent, error)

	// RetrieveIntent fetches the current state of a payment intent.
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)

	// Refund refunds a completed payment.
	Refund(ctx context.Context, input *RefundInput) (*RefundResult, error)

	// VerifyWebhook validates the payload signature and decodes the event.
	// Any signature mismatch must return an error; callers fail closed.
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
