package http

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/selimekin/storefront/internal/domain"
	"github.com/selimekin/storefront/internal/repository"
	apperrors "github.com/selimekin/storefront/pkg/errors"
)

const orderAddressJSON = `{
	"first_name": "Ada",
	"last_name": "Lovelace",
	"email": "ada@example.com",
	"street": "12 Analytical Way",
	"city": "San Francisco",
	"state": "CA",
	"zip": "94107",
	"country": "US"
}`

func checkoutCart(productID string) *domain.Cart {
	cart := domain.NewCart(testUserID)
	cart.Items = []domain.CartItem{
		{ProductID: productID, Name: "Wireless Mouse", SKU: "WM-1001", UnitPrice: 2999, Quantity: 2},
	}
	cart.RecalculateTotals()
	return cart
}

func TestOrderCreate_Success(t *testing.T) {
	router, deps := setupRouter(t)

	productID := uuid.NewString()

	deps.carts.On("Get", mock.Anything, testUserID).Return(checkoutCart(productID), nil)
	deps.products.On("GetByIDs", mock.Anything, []string{productID}).
		Return(map[string]*domain.Product{
			productID: {ID: productID, Name: "Wireless Mouse", SKU: "WM-1001", Price: 2999, Stock: 50, IsActive: true},
		}, nil)
	deps.orders.On("Create", mock.Anything, mock.Anything, []repository.StockChange{
		{ProductID: productID, Quantity: 2},
	}).Return(nil)
	deps.carts.On("Delete", mock.Anything, testUserID).Return(nil)

	body := fmt.Sprintf(`{
		"shipping_address": %s,
		"shipping_method": "standard",
		"payment_method": "cash_on_delivery"
	}`, orderAddressJSON)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+userToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	deps.orders.AssertExpectations(t)
}

func TestOrderCreate_EmptyCart(t *testing.T) {
	router, deps := setupRouter(t)

	deps.carts.On("Get", mock.Anything, testUserID).
		Return(nil, apperrors.NotFound("cart", testUserID))

	body := fmt.Sprintf(`{
		"shipping_address": %s,
		"shipping_method": "standard",
		"payment_method": "card"
	}`, orderAddressJSON)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+userToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	deps.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderGet_NotOwner(t *testing.T) {
	router, deps := setupRouter(t)

	orderID := uuid.NewString()
	deps.orders.On("GetByID", mock.Anything, orderID).
		Return(&domain.Order{ID: orderID, UserID: "someone-else", Status: domain.OrderStatusPending}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID, nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOrderList_InvalidStatusFilter(t *testing.T) {
	router, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=canceled", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderAdminRoutes_CustomerForbidden(t *testing.T) {
	router, _ := setupRouter(t)

	for _, path := range []string{"/api/v1/orders/admin/all", "/api/v1/orders/admin/stats"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+userToken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code, path)

		resp := decodeResponse(t, rec)
		assert.Equal(t, "insufficient permissions", resp.Message)
	}
}

func TestOrderStats_AsAdmin(t *testing.T) {
	router, deps := setupRouter(t)

	deps.orders.On("Stats", mock.Anything).Return(&repository.OrderStats{
		TotalOrders:    8,
		CountsByStatus: map[string]int64{"pending": 3, "delivered": 5},
		GrossRevenue:   60000,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
}

func TestOrderUpdateStatus_AsAdmin(t *testing.T) {
	router, deps := setupRouter(t)

	orderID := uuid.NewString()
	deps.orders.On("GetByID", mock.Anything, orderID).
		Return(&domain.Order{ID: orderID, UserID: testUserID, Status: domain.OrderStatusProcessing}, nil)
	deps.orders.On("UpdateStatus", mock.Anything, orderID, mock.MatchedBy(func(u repository.StatusUpdate) bool {
		return u.Status == domain.OrderStatusShipped && u.Carrier == "UPS" && u.TrackingNumber == "1Z999"
	})).Return(nil)

	body := `{"status":"shipped","carrier":"UPS","tracking_number":"1Z999"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/"+orderID+"/status", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.orders.AssertExpectations(t)
}

func TestOrderUpdateStatus_CustomerForbidden(t *testing.T) {
	router, deps := setupRouter(t)

	orderID := uuid.NewString()

	body := `{"status":"shipped"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/"+orderID+"/status", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+userToken)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	deps.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}
