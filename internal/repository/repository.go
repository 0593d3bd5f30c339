package repository

import (
	"context"
	"time"

	"github.com/selimekin/storefront/internal/domain"
)

// ProductFilter defines filter criteria for listing products.
type ProductFilter struct {
	Category   *string
	Search     *string
	MinPrice   *int64
	MaxPrice   *int64
	MinRating  *float64
	InStock    bool
	Featured   bool
	ActiveOnly bool
	SortBy     string
	SortOrder  string
	Page       int
	Limit      int
}

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	UserID *string
	Status *string
	Search *string
	Page   int
	Limit  int
}

// StockChange describes an atomic stock adjustment for one product.
// Quantity is subtracted from stock and added to total_sales; a negative
// quantity restores stock (used when an order is cancelled).
type StockChange struct {
	ProductID string
	Quantity  int
}

// OrderStats aggregates order counts and revenue for the admin dashboard.
type OrderStats struct {
	TotalOrders    int64            `json:"total_orders"`
	CountsByStatus map[string]int64 `json:"counts_by_status"`
	GrossRevenue   int64            `json:"gross_revenue"`
}

// ProductRepository defines the interface for catalog persistence operations.
type ProductRepository interface {
	// Create inserts a new product into the store.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetByIDs retrieves multiple products in one query, keyed by ID.
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)

	// List returns products matching the given filter along with the total count.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int64, error)

	// Update modifies an existing product in the store.
	Update(ctx context.Context, product *domain.Product) error

	// Deactivate soft-deletes a product by clearing its active flag.
	Deactivate(ctx context.Context, id string) error
}

// ReviewRepository defines the interface for review persistence operations.
type ReviewRepository interface {
	// Create inserts a review and recomputes the product's rating aggregates
	// in the same transaction.
	Create(ctx context.Context, review *domain.Review) error

	// ListByProduct returns reviews for a product, newest first, with the
	// total count.
	ListByProduct(ctx context.Context, productID string, page, limit int) ([]domain.Review, int64, error)
}

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves a cart by user ID. Returns apperrors.ErrNotFound when the
	// user has no cart.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// Save persists the cart and refreshes its TTL.
	Save(ctx context.Context, cart *domain.Cart) error

	// Delete removes the cart entirely.
	Delete(ctx context.Context, userID string) error
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts the order, its items, and the initial history row, and
	// applies the given stock changes, all in one transaction. Returns
	// apperrors.ErrInsufficientStock when any change cannot be satisfied.
	Create(ctx context.Context, order *domain.Order, changes []StockChange) error

	// GetByID retrieves an order with its items and status history.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByIntentID retrieves the order associated with a payment intent.
	GetByIntentID(ctx context.Context, intentID string) (*domain.Order, error)

	// List returns orders matching the given filter along with the total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int64, error)

	// UpdateStatus applies a status transition with a history entry and
	// optional shipping updates, restoring stock when the target status is
	// cancelled. The whole update runs in one transaction.
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) error

	// SetPaymentIntent records the provider intent ID on the order.
	SetPaymentIntent(ctx context.Context, orderID, intentID string) error

	// FinalizePayment marks the order's payment as completed and the order as
	// confirmed, but only if the payment is still pending. Returns false when
	// another caller already finalized or failed the payment.
	FinalizePayment(ctx context.Context, orderID, transactionID string, paidAt time.Time) (bool, error)

	// MarkPaymentFailed sets the payment status to failed.
	MarkPaymentFailed(ctx context.Context, orderID string) error

	// MarkRefunded sets the payment status to refunded, cancels the order,
	// and records the admin note, in one transaction.
	MarkRefunded(ctx context.Context, orderID, adminNote string) error

	// Stats aggregates order counts by status and gross revenue.
	Stats(ctx context.Context) (*OrderStats, error)
}

// StatusUpdate carries the fields of an admin status transition.
type StatusUpdate struct {
	Status         string
	Note           string
	Carrier        string
	TrackingNumber string
	// StockChanges holds the inverse of the creation decrements, applied when
	// the target status is cancelled.
	StockChanges []StockChange
	// MarkPaid completes a pending payment alongside the transition
	// (confirming an order that was awaiting payment).
	MarkPaid bool
}
