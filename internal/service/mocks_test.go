package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/selimekin/storefront/internal/domain"
	"github.com/selimekin/storefront/internal/event"
	"github.com/selimekin/storefront/internal/provider"
	"github.com/selimekin/storefront/internal/repository"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProducer() *event.Producer {
	return event.NewProducer(nil, newTestLogger())
}

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.Product), args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Get(1).(int64), args.Error(2)
}

func (m *mockProductRepo) Update(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepo) Deactivate(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepo) ListByProduct(ctx context.Context, productID string, page, limit int) ([]domain.Review, int64, error) {
	args := m.Called(ctx, productID, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Review), args.Get(1).(int64), args.Error(2)
}

type mockCartRepo struct {
	mock.Mock
}

func (m *mockCartRepo) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepo) Save(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *mockCartRepo) Delete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, order *domain.Order, changes []repository.StockChange) error {
	args := m.Called(ctx, order, changes)
	return args.Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepo) GetByIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepo) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Get(1).(int64), args.Error(2)
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, id string, update repository.StatusUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *mockOrderRepo) SetPaymentIntent(ctx context.Context, orderID, intentID string) error {
	args := m.Called(ctx, orderID, intentID)
	return args.Error(0)
}

func (m *mockOrderRepo) FinalizePayment(ctx context.Context, orderID, transactionID string, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, orderID, transactionID, paidAt)
	return args.Bool(0), args.Error(1)
}

func (m *mockOrderRepo) MarkPaymentFailed(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *mockOrderRepo) MarkRefunded(ctx context.Context, orderID, adminNote string) error {
	args := m.Called(ctx, orderID, adminNote)
	return args.Error(0)
}

func (m *mockOrderRepo) Stats(ctx context.Context) (*repository.OrderStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.OrderStats), args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Name() string {
	return "test"
}

func (m *mockGateway) CreateIntent(ctx context.Context, input *provider.CreateIntentInput) (*provider.Intent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Intent), args.Error(1)
}

func (m *mockGateway) RetrieveIntent(ctx context.Context, intentID string) (*provider.Intent, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Intent), args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, input *provider.RefundInput) (*provider.RefundResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.RefundResult), args.Error(1)
}

func (m *mockGateway) VerifyWebhook(payload []byte, signature string) (*provider.WebhookEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.WebhookEvent), args.Error(1)
}
