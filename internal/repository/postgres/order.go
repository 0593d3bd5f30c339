package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/selimekin/storefront/internal/domain"
	"github.com/selimekin/storefront/internal/repository"
	"github.com/selimekin/storefront/pkg/database"
	apperrors "github.com/selimekin/storefront/pkg/errors"
)

const orderColumns = `id, order_number, user_id, status, shipping_address, billing_address,
	payment_method, payment_intent_id, payment_transaction_id, payment_status, paid_at,
	shipping_method, shipping_cost, carrier, tracking_number, estimated_delivery, actual_delivery,
	subtotal, shipping, tax, discount, total, customer_note, admin_note, created_at, updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts the order, its items, and the initial history row, and
// commits the stock changes, all within a single transaction. A stock change
// that cannot be satisfied aborts the whole transaction with
// ErrInsufficientStock, so no partial order is ever visible.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order, changes []repository.StockChange) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	shippingJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	billingJSON, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}

	orderQuery := `
		INSERT INTO orders (id, order_number, user_id, status, shipping_address, billing_address,
			payment_method, payment_intent_id, payment_status,
			shipping_method, shipping_cost, estimated_delivery,
			subtotal, shipping, tax, discount, total, customer_note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err = tx.Exec(ctx, orderQuery,
		o.ID,
		o.OrderNumber,
		o.UserID,
		o.Status,
		shippingJSON,
		billingJSON,
		o.Payment.Method,
		o.Payment.IntentID,
		o.Payment.Status,
		o.Shipping.Method,
		o.Shipping.Cost,
		o.Shipping.EstimatedDelivery,
		o.Pricing.Subtotal,
		o.Pricing.Shipping,
		o.Pricing.Tax,
		o.Pricing.Discount,
		o.Pricing.Total,
		o.CustomerNote,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("order", "order_number", o.OrderNumber)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, name, sku, image_url, unit_price, quantity, line_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, item := range o.Items {
		_, err = tx.Exec(ctx, itemQuery,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.Name,
			item.SKU,
			item.ImageURL,
			item.UnitPrice,
			item.Quantity,
			item.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	historyQuery := `
		INSERT INTO order_status_history (order_id, status, note, created_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := tx.Exec(ctx, historyQuery, o.ID, o.Status, "Order created", o.CreatedAt); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	// The conditional UPDATE is the single inventory commit point: zero rows
	// affected means another order consumed the stock first.
	stockQuery := `
		UPDATE products
		SET stock = stock - $1, total_sales = total_sales + $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1`

	for _, change := range changes {
		ct, err := tx.Exec(ctx, stockQuery, change.Quantity, change.ProductID)
		if err != nil {
			return fmt.Errorf("commit stock for product %s: %w", change.ProductID, err)
		}
		if ct.RowsAffected() == 0 {
			return apperrors.InsufficientStock(change.ProductID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID, eagerly loading items and status history.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getByField(ctx, "o.id", id)
}

// GetByIntentID retrieves the order associated with a payment intent.
func (r *OrderRepository) GetByIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	return r.getByField(ctx, "o.payment_intent_id", intentID)
}

func (r *OrderRepository) getByField(ctx context.Context, field, value string) (*domain.Order, error) {
	// Fetch the order and its items in a single query using LEFT JOIN +
	// JSONB_AGG to avoid a second round trip per order.
	query := fmt.Sprintf(`
		SELECT
			o.id, o.order_number, o.user_id, o.status, o.shipping_address, o.billing_address,
			o.payment_method, o.payment_intent_id, o.payment_transaction_id, o.payment_status, o.paid_at,
			o.shipping_method, o.shipping_cost, o.carrier, o.tracking_number, o.estimated_delivery, o.actual_delivery,
			o.subtotal, o.shipping, o.tax, o.discount, o.total, o.customer_note, o.admin_note,
			o.created_at, o.updated_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'id', oi.id,
						'order_id', oi.order_id,
						'product_id', oi.product_id,
						'name', oi.name,
						'sku', oi.sku,
						'image_url', oi.image_url,
						'unit_price', oi.unit_price,
						'quantity', oi.quantity,
						'line_total', oi.line_total
					) ORDER BY oi.id
				) FILTER (WHERE oi.id IS NOT NULL),
				'[]'::jsonb
			) AS items
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id
		WHERE %s = $1
		GROUP BY o.id`, field)

	var (
		o            domain.Order
		shippingJSON []byte
		billingJSON  []byte
		itemsJSON    []byte
	)

	err := r.pool.QueryRow(ctx, query, value).Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.Status,
		&shippingJSON,
		&billingJSON,
		&o.Payment.Method,
		&o.Payment.IntentID,
		&o.Payment.TransactionID,
		&o.Payment.Status,
		&o.Payment.PaidAt,
		&o.Shipping.Method,
		&o.Shipping.Cost,
		&o.Shipping.Carrier,
		&o.Shipping.TrackingNumber,
		&o.Shipping.EstimatedDelivery,
		&o.Shipping.ActualDelivery,
		&o.Pricing.Subtotal,
		&o.Pricing.Shipping,
		&o.Pricing.Tax,
		&o.Pricing.Discount,
		&o.Pricing.Total,
		&o.CustomerNote,
		&o.AdminNote,
		&o.CreatedAt,
		&o.UpdatedAt,
		&itemsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal(shippingJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := json.Unmarshal(billingJSON, &o.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if o.Items == nil {
		o.Items = []domain.OrderItem{}
	}

	history, err := r.loadStatusHistory(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.StatusHistory = history

	return &o, nil
}

// List returns orders matching the given filter with the total count.
// Items are batch-loaded in a second query to avoid N+1; status history is
// omitted from list views.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int64, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIndex))
		args = append(args, *filter.UserID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf(
			"(order_number ILIKE $%d OR shipping_address->>'email' ILIKE $%d OR shipping_address->>'last_name' ILIKE $%d)",
			argIndex, argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Use count(*) OVER() for total count in a single query.
	query := fmt.Sprintf(`
		SELECT %s,
			   count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var totalCount int64
	orders := make([]domain.Order, 0)

	for rows.Next() {
		var (
			o            domain.Order
			shippingJSON []byte
			billingJSON  []byte
		)

		if err := rows.Scan(
			&o.ID,
			&o.OrderNumber,
			&o.UserID,
			&o.Status,
			&shippingJSON,
			&billingJSON,
			&o.Payment.Method,
			&o.Payment.IntentID,
			&o.Payment.TransactionID,
			&o.Payment.Status,
			&o.Payment.PaidAt,
			&o.Shipping.Method,
			&o.Shipping.Cost,
			&o.Shipping.Carrier,
			&o.Shipping.TrackingNumber,
			&o.Shipping.EstimatedDelivery,
			&o.Shipping.ActualDelivery,
			&o.Pricing.Subtotal,
			&o.Pricing.Shipping,
			&o.Pricing.Tax,
			&o.Pricing.Discount,
			&o.Pricing.Total,
			&o.CustomerNote,
			&o.AdminNote,
			&o.CreatedAt,
			&o.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}

		if err := json.Unmarshal(shippingJSON, &o.ShippingAddress); err != nil {
			return nil, 0, fmt.Errorf("unmarshal shipping address: %w", err)
		}
		if err := json.Unmarshal(billingJSON, &o.BillingAddress); err != nil {
			return nil, 0, fmt.Errorf("unmarshal billing address: %w", err)
		}

		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if len(orders) > 0 {
		if err := r.batchLoadItems(ctx, orders); err != nil {
			return nil, 0, err
		}
	}

	return orders, totalCount, nil
}

// batchLoadItems loads items for all given orders in a single query.
func (r *OrderRepository) batchLoadItems(ctx context.Context, orders []domain.Order) error {
	orderIDs := make([]string, len(orders))
	for i := range orders {
		orderIDs[i] = orders[i].ID
	}

	itemsQuery := `
		SELECT id, order_id, product_id, name, sku, image_url, unit_price, quantity, line_total
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`

	itemRows, err := r.pool.Query(ctx, itemsQuery, orderIDs)
	if err != nil {
		return fmt.Errorf("batch load order items: %w", err)
	}
	defer itemRows.Close()

	itemsByOrderID := make(map[string][]domain.OrderItem, len(orders))
	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Name,
			&item.SKU,
			&item.ImageURL,
			&item.UnitPrice,
			&item.Quantity,
			&item.LineTotal,
		); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		itemsByOrderID[item.OrderID] = append(itemsByOrderID[item.OrderID], item)
	}
	if err := itemRows.Err(); err != nil {
		return fmt.Errorf("iterate batch order item rows: %w", err)
	}

	for i := range orders {
		if items, ok := itemsByOrderID[orders[i].ID]; ok {
			orders[i].Items = items
		} else {
			orders[i].Items = []domain.OrderItem{}
		}
	}

	return nil
}

// UpdateStatus applies an admin status transition: the order row update, the
// history entry, and any stock restoration run in a single transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, update repository.StatusUpdate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	setClauses := []string{"status = $1", "updated_at = $2"}
	args := []any{update.Status, now}
	argIndex := 3

	if update.Carrier != "" {
		setClauses = append(setClauses, fmt.Sprintf("carrier = $%d", argIndex))
		args = append(args, update.Carrier)
		argIndex++
	}
	if update.TrackingNumber != "" {
		setClauses = append(setClauses, fmt.Sprintf("tracking_number = $%d", argIndex))
		args = append(args, update.TrackingNumber)
		argIndex++
	}
	if update.Status == domain.OrderStatusDelivered {
		setClauses = append(setClauses, fmt.Sprintf("actual_delivery = $%d", argIndex))
		args = append(args, now)
		argIndex++
	}
	if update.MarkPaid {
		setClauses = append(setClauses, fmt.Sprintf("payment_status = $%d", argIndex))
		args = append(args, domain.PaymentStatusCompleted)
		argIndex++
		setClauses = append(setClauses, fmt.Sprintf("paid_at = $%d", argIndex))
		args = append(args, now)
		argIndex++
	}

	query := fmt.Sprintf("UPDATE orders SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argIndex)
	args = append(args, id)

	ct, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}

	historyQuery := `
		INSERT INTO order_status_history (order_id, status, note, created_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := tx.Exec(ctx, historyQuery, id, update.Status, update.Note, now); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	// Cancelled orders hand their stock back; negative quantities invert the
	// decrement applied at creation.
	stockQuery := `
		UPDATE products
		SET stock = stock - $1, total_sales = total_sales + $1, updated_at = NOW()
		WHERE id = $2`

	for _, change := range update.StockChanges {
		if _, err := tx.Exec(ctx, stockQuery, change.Quantity, change.ProductID); err != nil {
			return fmt.Errorf("restore stock for product %s: %w", change.ProductID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// SetPaymentIntent records the provider intent ID on the order.
func (r *OrderRepository) SetPaymentIntent(ctx context.Context, orderID, intentID string) error {
	query := `UPDATE orders SET payment_intent_id = $1, updated_at = $2 WHERE id = $3`

	ct, err := r.pool.Exec(ctx, query, intentID, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", orderID)
	}

	return nil
}

// FinalizePayment atomically promotes a pending payment to completed and the
// order to confirmed. The payment_status guard in the WHERE clause makes the
// operation idempotent: a concurrent confirm or a redelivered webhook affects
// zero rows and reports ok=false without an error.
func (r *OrderRepository) FinalizePayment(ctx context.Context, orderID, transactionID string, paidAt time.Time) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE orders
		SET payment_status = $1, payment_transaction_id = $2, paid_at = $3,
		    status = $4, updated_at = $3
		WHERE id = $5 AND payment_status = $6`

	ct, err := tx.Exec(ctx, query,
		domain.PaymentStatusCompleted,
		transactionID,
		paidAt,
		domain.OrderStatusConfirmed,
		orderID,
		domain.PaymentStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("finalize payment: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return false, nil
	}

	historyQuery := `
		INSERT INTO order_status_history (order_id, status, note, created_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := tx.Exec(ctx, historyQuery, orderID, domain.OrderStatusConfirmed, "Payment completed", paidAt); err != nil {
		return false, fmt.Errorf("insert status history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	return true, nil
}

// MarkPaymentFailed sets the payment status to failed regardless of its
// current state.
func (r *OrderRepository) MarkPaymentFailed(ctx context.Context, orderID string) error {
	query := `UPDATE orders SET payment_status = $1, updated_at = $2 WHERE id = $3`

	ct, err := r.pool.Exec(ctx, query, domain.PaymentStatusFailed, time.Now().UTC(), orderID)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", orderID)
	}

	return nil
}

// MarkRefunded records a processed refund: payment refunded, order cancelled,
// admin note set, history appended, in one transaction.
func (r *OrderRepository) MarkRefunded(ctx context.Context, orderID, adminNote string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	query := `
		UPDATE orders
		SET payment_status = $1, status = $2, admin_note = $3, updated_at = $4
		WHERE id = $5`

	ct, err := tx.Exec(ctx, query,
		domain.PaymentStatusRefunded,
		domain.OrderStatusCancelled,
		adminNote,
		now,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("mark order refunded: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", orderID)
	}

	historyQuery := `
		INSERT INTO order_status_history (order_id, status, note, created_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := tx.Exec(ctx, historyQuery, orderID, domain.OrderStatusCancelled, adminNote, now); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Stats aggregates order counts by status and the gross revenue of
// non-cancelled orders.
func (r *OrderRepository) Stats(ctx context.Context) (*repository.OrderStats, error) {
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		GROUP BY status`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query order stats: %w", err)
	}
	defer rows.Close()

	stats := &repository.OrderStats{
		CountsByStatus: make(map[string]int64),
	}

	for rows.Next() {
		var (
			status string
			count  int64
			total  int64
		)
		if err := rows.Scan(&status, &count, &total); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		stats.CountsByStatus[status] = count
		stats.TotalOrders += count
		if status != domain.OrderStatusCancelled {
			stats.GrossRevenue += total
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats rows: %w", err)
	}

	return stats, nil
}

// loadStatusHistory retrieves the append-only status trail for an order.
func (r *OrderRepository) loadStatusHistory(ctx context.Context, orderID string) ([]domain.StatusHistoryEntry, error) {
	query := `
		SELECT status, note, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	var history []domain.StatusHistoryEntry
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		if err := rows.Scan(&entry.Status, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status history row: %w", err)
		}
		history = append(history, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history rows: %w", err)
	}

	return history, nil
}
