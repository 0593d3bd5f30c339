package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/selimekin/storefront/internal/domain"
	"github.com/selimekin/storefront/internal/provider"
)

func payableOrder(orderID, intentID string) *domain.Order {
	return &domain.Order{
		ID:          orderID,
		OrderNumber: "ORD-1700000000000-0042",
		UserID:      testUserID,
		Status:      domain.OrderStatusPending,
		Payment: domain.PaymentInfo{
			Method:   domain.PaymentMethodCard,
			IntentID: intentID,
			Status:   domain.PaymentStatusPending,
		},
		Pricing: domain.Pricing{Subtotal: 10000, Tax: 875, Total: 10875},
	}
}

func TestPaymentCreateIntent_Success(t *testing.T) {
	router, deps := setupRouter(t)

	productID := uuid.NewString()

	deps.carts.On("Get", mock.Anything, testUserID).Return(checkoutCart(productID), nil)
	deps.products.On("GetByIDs", mock.Anything, []string{productID}).
		Return(map[string]*domain.Product{
			productID: {ID: productID, Name: "Wireless Mouse", SKU: "WM-1001", Price: 2999, Stock: 50, IsActive: true},
		}, nil)
	deps.orders.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	deps.carts.On("Delete", mock.Anything, testUserID).Return(nil)
	deps.gateway.On("CreateIntent", mock.Anything, mock.MatchedBy(func(in *provider.CreateIntentInput) bool {
		return in.Currency == "usd" && in.Amount > 0
	})).Return(&provider.Intent{
		ID:           "pi_1",
		ClientSecret: "pi_1_secret",
		Status:       provider.IntentStatusPending,
	}, nil)
	deps.orders.On("SetPaymentIntent", mock.Anything, mock.Anything, "pi_1").Return(nil)

	body := fmt.Sprintf(`{
		"shipping_address": %s,
		"shipping_method": "standard",
		"payment_method": "card"
	}`, orderAddressJSON)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/create-intent", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+userToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result struct {
		IntentID     string `json:"intent_id"`
		ClientSecret string `json:"client_secret"`
		Currency     string `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "pi_1", result.IntentID)
	assert.Equal(t, "pi_1_secret", result.ClientSecret)
	assert.Equal(t, "usd", result.Currency)

	deps.gateway.AssertExpectations(t)
}

func TestPaymentCreateIntent_Unauthorized(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/create-intent", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPaymentConfirm_Success(t *testing.T) {
	router, deps := setupRouter(t)

	orderID := uuid.NewString()
	order := payableOrder(orderID, "pi_1")

	deps.orders.On("GetByID", mock.Anything, orderID).Return(order, nil)
	deps.gateway.On("RetrieveIntent", mock.Anything, "pi_1").Return(&provider.Intent{
		ID:            "pi_1",
		Status:        provider.IntentStatusSucceeded,
		TransactionID: "ch_1",
	}, nil)
	deps.orders.On("FinalizePayment", mock.Anything, orderID, "ch_1", mock.AnythingOfType("time.Time")).
		Return(true, nil)
	deps.carts.On("Delete", mock.Anything, testUserID).Return(nil)

	body := fmt.Sprintf(`{"order_id":%q,"intent_id":"pi_1"}`, orderID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+userToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	deps.orders.AssertExpectations(t)
}

func TestPaymentConfirm_IntentNotSucceeded(t *testing.T) {
	router, deps := setupRouter(t)

	orderID := uuid.NewString()
	order := payableOrder(orderID, "pi_1")

	deps.orders.On("GetByID", mock.Anything, orderID).Return(order, nil)
	deps.gateway.On("RetrieveIntent", mock.Anything, "pi_1").Return(&provider.Intent{
		ID:     "pi_1",
		Status: provider.IntentStatusPending,
	}, nil)
	deps.orders.On("MarkPaymentFailed", mock.Anything, orderID).Return(nil)

	body := fmt.Sprintf(`{"order_id":%q,"intent_id":"pi_1"}`, orderID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+userToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	deps.orders.AssertNotCalled(t, "FinalizePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentWebhook_BadSignature(t *testing.T) {
	router, deps := setupRouter(t)

	deps.gateway.On("VerifyWebhook", mock.Anything, "bad-sig").
		Return(nil, errors.New("signature mismatch"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewBufferString(`{}`))
	req.Header.Set("X-Webhook-Signature", "bad-sig")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeResponse(t, rec)
	assert.Equal(t, "webhook signature verification failed", resp.Message)
}

func TestPaymentWebhook_IntentSucceeded(t *testing.T) {
	router, deps := setupRouter(t)

	orderID := uuid.NewString()
	order := payableOrder(orderID, "pi_1")
	payload := []byte(`{"type":"payment_intent.succeeded","intent_id":"pi_1"}`)

	deps.gateway.On("VerifyWebhook", payload, "good-sig").Return(&provider.WebhookEvent{
		Type:          provider.EventIntentSucceeded,
		IntentID:      "pi_1",
		TransactionID: "ch_1",
	}, nil)
	deps.orders.On("GetByIntentID", mock.Anything, "pi_1").Return(order, nil)
	deps.orders.On("FinalizePayment", mock.Anything, orderID, "ch_1", mock.AnythingOfType("time.Time")).
		Return(true, nil)
	deps.carts.On("Delete", mock.Anything, testUserID).Return(nil)

	// The webhook is reachable without an Authorization header.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", bytes.NewBuffer(payload))
	req.Header.Set("Stripe-Signature", "good-sig")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result struct {
		EventType string `json:"event_type"`
		OrderID   string `json:"order_id"`
		Handled   bool   `json:"handled"`
	}
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.True(t, result.Handled)
	assert.Equal(t, orderID, result.OrderID)
}

func TestPaymentRefund_CustomerForbidden(t *testing.T) {
	router, deps := setupRouter(t)

	body := fmt.Sprintf(`{"order_id":%q}`, uuid.NewString())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/refund", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+userToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	deps.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
}

func TestPaymentRefund_AsAdmin(t *testing.T) {
	router, deps := setupRouter(t)

	orderID := uuid.NewString()
	order := payableOrder(orderID, "pi_1")
	order.Status = domain.OrderStatusConfirmed
	order.Payment.Status = domain.PaymentStatusCompleted
	paidAt := time.Now().UTC()
	order.Payment.PaidAt = &paidAt

	deps.orders.On("GetByID", mock.Anything, orderID).Return(order, nil)
	deps.gateway.On("Refund", mock.Anything, mock.MatchedBy(func(in *provider.RefundInput) bool {
		return in.IntentID == "pi_1" && in.Amount == 10875
	})).Return(&provider.RefundResult{RefundID: "re_1", Status: "succeeded"}, nil)
	deps.orders.On("MarkRefunded", mock.Anything, orderID, mock.MatchedBy(func(note string) bool {
		return note != ""
	})).Return(nil)

	body := fmt.Sprintf(`{"order_id":%q,"reason":"damaged item"}`, orderID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/refund", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.gateway.AssertExpectations(t)
	deps.orders.AssertExpectations(t)
}
