// Package mock implements an in-memory payment provider for development and
// testing. Intents succeed when retrieved, and webhooks are signed with
// HMAC-SHA256 so the verification path is exercised end to end.
package mock

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/selimekin/storefront/internal/provider"
	apperrors "github.com/selimekin/storefront/pkg/errors"
)

// Provider is a mock payment provider backed by an in-memory intent store.
type Provider struct {
	webhookSecret string

	mu      sync.RWMutex
	intents map[string]*provider.Intent
}

// NewProvider creates a new mock payment provider. The webhook secret is used
// to verify HMAC-SHA256 signatures on webhook payloads.
func NewProvider(webhookSecret string) *Provider {
	return &Provider{
		webhookSecret: webhookSecret,
		intents:       make(map[string]*provider.Intent),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "mock"
}

// CreateIntent creates a pending in-memory intent.
func (p *Provider) CreateIntent(_ context.Context, input *provider.CreateIntentInput) (*provider.Intent, error) {
	id := "pi_mock_" + uuid.New().String()

	intent := &provider.Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.New().String(),
		Amount:       input.Amount,
		Currency:     input.Currency,
		Status:       provider.IntentStatusPending,
	}

	p.mu.Lock()
	p.intents[id] = intent
	p.mu.Unlock()

	return intent, nil
}

// RetrieveIntent returns the intent, promoting it to succeeded. The mock
// gateway approves every payment so the confirm flow can complete without a
// real provider.
func (p *Provider) RetrieveIntent(_ context.Context, intentID string) (*provider.Intent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	intent, ok := p.intents[intentID]
	if !ok {
		return nil, apperrors.NotFound("payment intent", intentID)
	}

	if intent.Status == provider.IntentStatusPending {
		intent.Status = provider.IntentStatusSucceeded
		intent.TransactionID = "ch_mock_" + uuid.New().String()
	}

	cpy := *intent
	return &cpy, nil
}

// Refund simulates a refund that always succeeds.
func (p *Provider) Refund(_ context.Context, input *provider.RefundInput) (*provider.RefundResult, error) {
	p.mu.RLock()
	_, ok := p.intents[input.IntentID]
	p.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("payment intent", input.IntentID)
	}

	return &provider.RefundResult{
		RefundID: "re_mock_" + uuid.New().String(),
		Status:   "succeeded",
	}, nil
}

// webhookPayload is the wire shape of a mock webhook body.
type webhookPayload struct {
	Type          string `json:"type"`
	IntentID      string `json:"intent_id"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// VerifyWebhook checks the HMAC-SHA256 signature over the raw payload and
// decodes the event. The signature is the hex-encoded MAC.
func (p *Provider) VerifyWebhook(payload []byte, signature string) (*provider.WebhookEvent, error) {
	expected := Sign(payload, p.webhookSecret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, fmt.Errorf("webhook signature mismatch")
	}

	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	return &provider.WebhookEvent{
		Type:          body.Type,
		IntentID:      body.IntentID,
		TransactionID: body.TransactionID,
	}, nil
}

// Sign computes the hex-encoded HMAC-SHA256 signature for a webhook payload.
// Exposed so tests and local tooling can produce valid signatures.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
