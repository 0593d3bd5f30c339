package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/selimekin/storefront/internal/service"
	"github.com/selimekin/storefront/pkg/httputil"
	"github.com/selimekin/storefront/pkg/middleware"
	"github.com/selimekin/storefront/pkg/validator"
)

// webhookSignatureHeaders are checked in order for the provider signature.
var webhookSignatureHeaders = []string{"Stripe-Signature", "X-Webhook-Signature"}

// PaymentHandler handles HTTP requests for payment endpoints.
type PaymentHandler struct {
	payments *service.PaymentService
	logger   *slog.Logger
}

// NewPaymentHandler creates a new payment HTTP handler.
func NewPaymentHandler(payments *service.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// ConfirmRequest is the JSON request body for confirming a payment.
type ConfirmRequest struct {
	OrderID  string `json:"order_id" validate:"required,uuid"`
	IntentID string `json:"intent_id" validate:"required"`
}

// CreateIntent handles POST /api/v1/payments/create-intent
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req service.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Success: false,
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())

	result, err := h.payments.CreateIntent(r.Context(), userID, &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, result)
}

// Confirm handles POST /api/v1/payments/confirm
func (h *PaymentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Success: false,
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())

	order, err := h.payments.Confirm(r.Context(), userID, req.OrderID, req.IntentID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, order)
}

// Webhook handles POST /api/v1/payments/webhook. The raw body is needed for
// signature verification, so this endpoint bypasses JSON decoding.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Success: false,
			Message: "failed to read webhook payload",
		})
		return
	}

	var signature string
	for _, header := range webhookSignatureHeaders {
		if v := r.Header.Get(header); v != "" {
			signature = v
			break
		}
	}

	result, err := h.payments.HandleWebhook(r.Context(), payload, signature)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}

// Refund handles POST /api/v1/payments/refund (admin)
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req service.RefundInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Success: false,
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.payments.Refund(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, order)
}
