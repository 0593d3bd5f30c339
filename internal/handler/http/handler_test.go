package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/selimekin/storefront/internal/domain"
	"github.com/selimekin/storefront/internal/event"
	"github.com/selimekin/storefront/internal/provider"
	"github.com/selimekin/storefront/internal/repository"
	"github.com/selimekin/storefront/internal/service"
	"github.com/selimekin/storefront/pkg/httputil"
	"github.com/selimekin/storefront/pkg/middleware"
)

// --- Repository and gateway mocks ---

type productRepoMock struct {
	mock.Mock
}

func (m *productRepoMock) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *productRepoMock) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *productRepoMock) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.Product), args.Error(1)
}

func (m *productRepoMock) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Get(1).(int64), args.Error(2)
}

func (m *productRepoMock) Update(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *productRepoMock) Deactivate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type reviewRepoMock struct {
	mock.Mock
}

func (m *reviewRepoMock) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *reviewRepoMock) ListByProduct(ctx context.Context, productID string, page, limit int) ([]domain.Review, int64, error) {
	args := m.Called(ctx, productID, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Review), args.Get(1).(int64), args.Error(2)
}

type cartRepoMock struct {
	mock.Mock
}

func (m *cartRepoMock) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *cartRepoMock) Save(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *cartRepoMock) Delete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type orderRepoMock struct {
	mock.Mock
}

func (m *orderRepoMock) Create(ctx context.Context, order *domain.Order, changes []repository.StockChange) error {
	args := m.Called(ctx, order, changes)
	return args.Error(0)
}

func (m *orderRepoMock) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *orderRepoMock) GetByIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *orderRepoMock) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Get(1).(int64), args.Error(2)
}

func (m *orderRepoMock) UpdateStatus(ctx context.Context, id string, update repository.StatusUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *orderRepoMock) SetPaymentIntent(ctx context.Context, orderID, intentID string) error {
	args := m.Called(ctx, orderID, intentID)
	return args.Error(0)
}

func (m *orderRepoMock) FinalizePayment(ctx context.Context, orderID, transactionID string, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, orderID, transactionID, paidAt)
	return args.Bool(0), args.Error(1)
}

func (m *orderRepoMock) MarkPaymentFailed(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *orderRepoMock) MarkRefunded(ctx context.Context, orderID, adminNote string) error {
	args := m.Called(ctx, orderID, adminNote)
	return args.Error(0)
}

func (m *orderRepoMock) Stats(ctx context.Context) (*repository.OrderStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.OrderStats), args.Error(1)
}

type gatewayMock struct {
	mock.Mock
}

func (m *gatewayMock) Name() string {
	return "test"
}

func (m *gatewayMock) CreateIntent(ctx context.Context, input *provider.CreateIntentInput) (*provider.Intent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Intent), args.Error(1)
}

func (m *gatewayMock) RetrieveIntent(ctx context.Context, intentID string) (*provider.Intent, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Intent), args.Error(1)
}

func (m *gatewayMock) Refund(ctx context.Context, input *provider.RefundInput) (*provider.RefundResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.RefundResult), args.Error(1)
}

func (m *gatewayMock) VerifyWebhook(payload []byte, signature string) (*provider.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.WebhookEvent), args.Error(1)
}

// --- Test helpers ---

const (
	userToken  = "user-token"
	adminToken = "admin-token"
	testUserID = "user-123"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testProducer() *event.Producer {
	return event.NewProducer(nil, testLogger())
}

// testTokenValidator maps the two fixed test tokens to claims; anything else
// fails validation.
func testTokenValidator(token string) (*middleware.Claims, error) {
	switch token {
	case userToken:
		return &middleware.Claims{UserID: testUserID, Email: "user@example.com", Role: "customer"}, nil
	case adminToken:
		return &middleware.Claims{UserID: "admin-001", Email: "admin@example.com", Role: service.RoleAdmin}, nil
	}
	return nil, errors.New("invalid token")
}

// testDeps bundles the mocks behind a fully wired router.
type testDeps struct {
	products *productRepoMock
	reviews  *reviewRepoMock
	carts    *cartRepoMock
	orders   *orderRepoMock
	gateway  *gatewayMock
}

// setupRouter builds a chi router matching the production route layout so the
// auth, role, and content-type middleware are exercised end to end.
func setupRouter(t *testing.T) (*chi.Mux, *testDeps) {
	t.Helper()

	deps := &testDeps{
		products: new(productRepoMock),
		reviews:  new(reviewRepoMock),
		carts:    new(cartRepoMock),
		orders:   new(orderRepoMock),
		gateway:  new(gatewayMock),
	}

	logger := testLogger()
	producer := testProducer()
	pricer := service.NewPricer(5000)

	catalog := service.NewCatalogService(deps.products, deps.reviews, logger)
	cart := service.NewCartService(deps.carts, deps.products, producer, logger)
	orders := service.NewOrderService(deps.orders, deps.products, deps.carts, pricer, producer, logger)
	payments := service.NewPaymentService(deps.orders, deps.carts, orders, deps.gateway, producer, logger, "usd")

	productHandler := NewProductHandler(catalog, logger)
	cartHandler := NewCartHandler(cart, logger)
	orderHandler := NewOrderHandler(orders, logger)
	paymentHandler := NewPaymentHandler(payments, logger)

	auth := middleware.Auth(testTokenValidator)
	adminOnly := middleware.RequireRole(service.RoleAdmin)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/{id}", productHandler.Get)
			r.Get("/{id}/reviews", productHandler.ListReviews)

			r.Group(func(r chi.Router) {
				r.Use(ContentTypeJSON)
				r.Use(auth)

				r.With(adminOnly).Post("/", productHandler.Create)
				r.With(adminOnly).Put("/{id}", productHandler.Update)
				r.With(adminOnly).Delete("/{id}", productHandler.Deactivate)
				r.Post("/{id}/reviews", productHandler.AddReview)
			})
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(auth)

			r.Get("/", cartHandler.Get)
			r.Delete("/", cartHandler.Clear)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productID}", cartHandler.SetQuantity)
			r.Delete("/items/{productID}", cartHandler.RemoveItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(ContentTypeJSON)
			r.Use(auth)

			r.Post("/", orderHandler.Create)
			r.Get("/", orderHandler.List)
			r.With(adminOnly).Get("/admin/all", orderHandler.AdminList)
			r.With(adminOnly).Get("/admin/stats", orderHandler.Stats)
			r.Get("/{id}", orderHandler.Get)
			r.With(adminOnly).Patch("/{id}/status", orderHandler.UpdateStatus)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/webhook", paymentHandler.Webhook)

			r.Group(func(r chi.Router) {
				r.Use(ContentTypeJSON)
				r.Use(auth)

				r.Post("/create-intent", paymentHandler.CreateIntent)
				r.Post("/confirm", paymentHandler.Confirm)
				r.With(adminOnly).Post("/refund", paymentHandler.Refund)
			})
		})
	})

	return r, deps
}

// decodeResponse reads the response body into the standard envelope.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}
