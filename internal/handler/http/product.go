package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/selimekin/storefront/internal/repository"
	"github.com/selimekin/storefront/internal/service"
	"github.com/selimekin/storefront/pkg/httputil"
	"github.com/selimekin/storefront/pkg/middleware"
	"github.com/selimekin/storefront/pkg/pagination"
	"github.com/selimekin/storefront/pkg/validator"
)

// maxBodyBytes caps request bodies to prevent oversized payloads.
const maxBodyBytes = 1 << 20

// ProductHandler handles HTTP requests for catalog endpoints.
type ProductHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(catalog *service.CatalogService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// List handles GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)
	query := r.URL.Query()

	filter := repository.ProductFilter{
		ActiveOnly: true,
		SortBy:     query.Get("sort_by"),
		SortOrder:  query.Get("sort_order"),
		Page:       params.Page,
		Limit:      params.Limit,
	}

	if v := query.Get("category"); v != "" {
		filter.Category = &v
	}
	if v := query.Get("search"); v != "" {
		filter.Search = &v
	}
	if v := query.Get("min_price"); v != "" {
		price, err := strconv.ParseInt(v, 10, 64)
		if err != nil || price < 0 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Success: false,
				Message: "min_price must be a non-negative integer",
			})
			return
		}
		filter.MinPrice = &price
	}
	if v := query.Get("max_price"); v != "" {
		price, err := strconv.ParseInt(v, 10, 64)
		if err != nil || price < 0 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Success: false,
				Message: "max_price must be a non-negative integer",
			})
			return
		}
		filter.MaxPrice = &price
	}
	if v := query.Get("min_rating"); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil || rating < 0 || rating > 5 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Success: false,
				Message: "min_rating must be a number between 0 and 5",
			})
			return
		}
		filter.MinRating = &rating
	}
	if query.Get("in_stock") == "true" {
		filter.InStock = true
	}
	if query.Get("featured") == "true" {
		filter.Featured = true
	}

	products, total, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteList(w, products, httputil.NewPagination(total, params.Page, params.Limit))
}

// Get handles GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	includeInactive := middleware.RoleFromContext(r.Context()) == service.RoleAdmin

	product, err := h.catalog.GetProduct(r.Context(), id.String(), includeInactive)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// Create handles POST /api/v1/products (admin)
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req service.CreateProductInput
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

	product, err := h.catalog.CreateProduct(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, product)
}

// Update handles PUT /api/v1/products/{id} (admin)
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req service.UpdateProductInput
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

	product, err := h.catalog.UpdateProduct(r.Context(), id.String(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, product)
}

// Deactivate handles DELETE /api/v1/products/{id} (admin)
func (h *ProductHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.catalog.DeactivateProduct(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]string{"id": id.String()})
}

// ListReviews handles GET /api/v1/products/{id}/reviews
func (h *ProductHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	params := pagination.FromRequest(r)

	reviews, total, err := h.catalog.ListReviews(r.Context(), id.String(), params.Page, params.Limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteList(w, reviews, httputil.NewPagination(total, params.Page, params.Limit))
}

// AddReview handles POST /api/v1/products/{id}/reviews (auth)
func (h *ProductHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req service.AddReviewInput
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

	review, err := h.catalog.AddReview(r.Context(), id.String(), userID, &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, review)
}
