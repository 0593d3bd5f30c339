package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/selimekin/storefront/internal/repository"
	"github.com/selimekin/storefront/internal/service"
	"github.com/selimekin/storefront/pkg/httputil"
	"github.com/selimekin/storefront/pkg/middleware"
	"github.com/selimekin/storefront/pkg/pagination"
	"github.com/selimekin/storefront/pkg/validator"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orders *service.OrderService
	logger *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(orders *service.OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// Create handles POST /api/v1/orders
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	order, err := h.orders.CreateOrder(r.Context(), userID, &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, order)
}

// List handles GET /api/v1/orders (own orders)
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	userID := middleware.UserIDFromContext(r.Context())

	var status *string
	if v := r.URL.Query().Get("status"); v != "" {
		status = &v
	}

	orders, total, err := h.orders.ListOrders(r.Context(), userID, status, params.Page, params.Limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteList(w, orders, httputil.NewPagination(total, params.Page, params.Limit))
}

// Get handles GET /api/v1/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	role := middleware.RoleFromContext(r.Context())

	order, err := h.orders.GetOrder(r.Context(), id.String(), userID, role)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, order)
}

// UpdateStatus handles PATCH /api/v1/orders/{id}/status (admin)
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req service.UpdateStatusInput
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

	order, err := h.orders.UpdateStatus(r.Context(), id.String(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, order)
}

// AdminList handles GET /api/v1/orders/admin/all (admin)
func (h *OrderHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	query := r.URL.Query()

	filter := repository.OrderFilter{
		Page:  params.Page,
		Limit: params.Limit,
	}
	if v := query.Get("status"); v != "" {
		filter.Status = &v
	}
	if v := query.Get("search"); v != "" {
		filter.Search = &v
	}

	orders, total, err := h.orders.AdminListOrders(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteList(w, orders, httputil.NewPagination(total, params.Page, params.Limit))
}

// Stats handles GET /api/v1/orders/admin/stats (admin)
func (h *OrderHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.orders.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, stats)
}
