package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/selimekin/storefront/internal/domain"
	"github.com/selimekin/storefront/internal/event"
	"github.com/selimekin/storefront/internal/repository"
	apperrors "github.com/selimekin/storefront/pkg/errors"
)

// RoleAdmin is the role claim required for administrative operations.
const RoleAdmin = "admin"

// OrderService implements the business logic for the order workflow.
type OrderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	carts    repository.CartRepository
	pricer   *Pricer
	producer *event.Producer
	logger   *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	carts repository.CartRepository,
	pricer *Pricer,
	producer *event.Producer,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		carts:    carts,
		pricer:   pricer,
		producer: producer,
		logger:   logger,
	}
}

// CreateOrderInput holds the parameters for creating an order from the
// user's cart. BillingAddress defaults to ShippingAddress when omitted.
type CreateOrderInput struct {
	ShippingAddress domain.Address  `json:"shipping_address" validate:"required"`
	BillingAddress  *domain.Address `json:"billing_address,omitempty"`
	ShippingMethod  string          `json:"shipping_method" validate:"required"`
	PaymentMethod   string          `json:"payment_method" validate:"required"`
	CustomerNote    string          `json:"customer_note,omitempty" validate:"max=500"`
}

// CreateOrder builds an order from the user's cart. Line validation, the
// order insert, and the stock decrements all happen inside one repository
// transaction, so either the whole order commits with its stock or nothing
// does. The cart is cleared after commit; a clear failure is logged only,
// since reconciliation heals the cart on its next read.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, input *CreateOrderInput) (*domain.Order, error) {
	if !domain.IsValidShippingMethod(input.ShippingMethod) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown shipping method %q", input.ShippingMethod))
	}
	if input.PaymentMethod != domain.PaymentMethodCard && input.PaymentMethod != domain.PaymentMethodCashOnDelivery {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown payment method %q", input.PaymentMethod))
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.EmptyCart()
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if len(cart.Items) == 0 {
		return nil, apperrors.EmptyCart()
	}

	ids := make([]string, len(cart.Items))
	for i, item := range cart.Items {
		ids[i] = item.ProductID
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}

	now := time.Now().UTC()
	orderID := uuid.New().String()

	items := make([]domain.OrderItem, 0, len(cart.Items))
	changes := make([]repository.StockChange, 0, len(cart.Items))
	var subtotal int64

	for _, line := range cart.Items {
		product, ok := products[line.ProductID]
		if !ok || !product.IsActive {
			return nil, apperrors.NotFound("product", line.ProductID)
		}
		if !product.HasStock(line.Quantity) {
			return nil, apperrors.OutOfStock(product.Name, product.Stock)
		}

		lineTotal := product.Price * int64(line.Quantity)
		subtotal += lineTotal

		items = append(items, domain.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   orderID,
			ProductID: product.ID,
			Name:      product.Name,
			SKU:       product.SKU,
			ImageURL:  product.ImageURL,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
			LineTotal: lineTotal,
		})
		changes = append(changes, repository.StockChange{
			ProductID: product.ID,
			Quantity:  line.Quantity,
		})
	}

	billing := input.ShippingAddress
	if input.BillingAddress != nil {
		billing = *input.BillingAddress
	}

	estimated := s.pricer.EstimatedDelivery(input.ShippingMethod, now)

	order := &domain.Order{
		ID:              orderID,
		OrderNumber:     newOrderNumber(now),
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		Items:           items,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  billing,
		Payment: domain.PaymentInfo{
			Method: input.PaymentMethod,
			Status: domain.PaymentStatusPending,
		},
		Shipping: domain.ShippingInfo{
			Method:            input.ShippingMethod,
			Cost:              s.pricer.ShippingCost(input.ShippingMethod, subtotal),
			EstimatedDelivery: &estimated,
		},
		Pricing:      s.pricer.Price(subtotal, input.ShippingMethod, input.ShippingAddress.State),
		CustomerNote: input.CustomerNote,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.orders.Create(ctx, order, changes); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.carts.Delete(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after order creation",
			slog.String("order_id", order.ID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.producer.OrderCreated(ctx, order)

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.String("user_id", userID),
		slog.Int64("total", order.Pricing.Total),
	)

	return order, nil
}

// GetOrder retrieves an order, enforcing ownership. Admins can read any order.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID, role string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}

	if order.UserID != userID && role != RoleAdmin {
		return nil, apperrors.Forbidden("you do not have access to this order")
	}

	return order, nil
}

// ListOrders returns the user's own orders, optionally filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, userID string, status *string, page, limit int) ([]domain.Order, int64, error) {
	if status != nil && !domain.IsValidStatus(*status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown order status %q", *status))
	}

	orders, total, err := s.orders.List(ctx, repository.OrderFilter{
		UserID: &userID,
		Status: status,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}

// AdminListOrders returns orders across all users with status filter and
// text search over order number and shipping name/email.
func (s *OrderService) AdminListOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int64, error) {
	if filter.Status != nil && !domain.IsValidStatus(*filter.Status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown order status %q", *filter.Status))
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}

// UpdateStatusInput holds the parameters for an admin status transition.
type UpdateStatusInput struct {
	Status         string `json:"status" validate:"required"`
	Note           string `json:"note,omitempty" validate:"max=500"`
	Carrier        string `json:"carrier,omitempty" validate:"max=100"`
	TrackingNumber string `json:"tracking_number,omitempty" validate:"max=100"`
}

// UpdateStatus drives the order status machine. Transitioning to confirmed
// while payment is pending marks the payment completed (cash on delivery and
// manual confirmation). Transitioning to cancelled restores each line's stock
// and reverses its sales counter.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, input *UpdateStatusInput) (*domain.Order, error) {
	if !domain.IsValidStatus(input.Status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown order status %q", input.Status))
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}

	if !order.CanTransitionTo(input.Status) {
		return nil, apperrors.InvalidTransition(order.Status, input.Status)
	}

	update := repository.StatusUpdate{
		Status:         input.Status,
		Note:           input.Note,
		Carrier:        input.Carrier,
		TrackingNumber: input.TrackingNumber,
	}

	if input.Status == domain.OrderStatusConfirmed && order.Payment.Status == domain.PaymentStatusPending {
		update.MarkPaid = true
	}

	if input.Status == domain.OrderStatusCancelled {
		update.StockChanges = make([]repository.StockChange, 0, len(order.Items))
		for _, item := range order.Items {
			update.StockChanges = append(update.StockChanges, repository.StockChange{
				ProductID: item.ProductID,
				Quantity:  -item.Quantity,
			})
		}
	}

	if err := s.orders.UpdateStatus(ctx, orderID, update); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	s.producer.OrderStatusChanged(ctx, orderID, order.Status, input.Status, input.Note)

	s.logger.InfoContext(ctx, "order status updated",
		slog.String("order_id", orderID),
		slog.String("from", order.Status),
		slog.String("to", input.Status),
	)

	updated, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}

	return updated, nil
}

// Stats aggregates order counts by status and gross revenue for the admin
// dashboard.
func (s *OrderService) Stats(ctx context.Context) (*repository.OrderStats, error) {
	stats, err := s.orders.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	return stats, nil
}

// newOrderNumber generates a human-readable order number. Uniqueness is
// enforced by the database constraint; the random suffix keeps same-
// millisecond collisions unlikely.
func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%04d", now.UnixMilli(), rand.IntN(10000))
}
