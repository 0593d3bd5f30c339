package event

import (
	"context"
	"log/slog"

	"github.com/selimekin/storefront/internal/domain"
	pkgkafka "github.com/selimekin/storefront/pkg/kafka"
)

// Kafka topics for storefront domain events.
var (
	TopicOrderCreated       = pkgkafka.Topic("order", "created")
	TopicOrderStatusChanged = pkgkafka.Topic("order", "status_changed")
	TopicPaymentSucceeded   = pkgkafka.Topic("payment", "succeeded")
	TopicPaymentFailed      = pkgkafka.Topic("payment", "failed")
	TopicPaymentRefunded    = pkgkafka.Topic("payment", "refunded")
	TopicCartUpdated        = pkgkafka.Topic("cart", "updated")
	TopicCartCleared        = pkgkafka.Topic("cart", "cleared")
)

// Aggregate type constants.
const (
	AggregateTypeOrder = "order"
	AggregateTypeCart  = "cart"
)

// Source identifier for events published by this service.
const Source = "storefront"

// OrderCreatedData is the payload for an order.created event.
type OrderCreatedData struct {
	ID          string          `json:"id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	Status      string          `json:"status"`
	Items       []OrderItemData `json:"items"`
	Pricing     domain.Pricing  `json:"pricing"`
}

// OrderItemData is the event payload for an order line.
type OrderItemData struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Note      string `json:"note,omitempty"`
}

// PaymentData is the payload for payment lifecycle events.
type PaymentData struct {
	OrderID       string `json:"order_id"`
	IntentID      string `json:"intent_id"`
	TransactionID string `json:"transaction_id,omitempty"`
	Amount        int64  `json:"amount"`
}

// CartData is the payload for cart lifecycle events.
type CartData struct {
	UserID     string `json:"user_id"`
	TotalItems int    `json:"total_items"`
	TotalPrice int64  `json:"total_price"`
}

// Producer publishes storefront domain events to Kafka. Publishing is
// best-effort: failures are logged and never propagate to the caller, so a
// broker outage cannot fail a checkout.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// OrderCreated publishes an order.created event.
func (p *Producer) OrderCreated(ctx context.Context, order *domain.Order) {
	items := make([]OrderItemData, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemData{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}

	data := OrderCreatedData{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Status:      order.Status,
		Items:       items,
		Pricing:     order.Pricing,
	}

	p.publish(ctx, TopicOrderCreated, order.ID, AggregateTypeOrder, data)
}

// OrderStatusChanged publishes an order.status_changed event.
func (p *Producer) OrderStatusChanged(ctx context.Context, orderID, oldStatus, newStatus, note string) {
	p.publish(ctx, TopicOrderStatusChanged, orderID, AggregateTypeOrder, OrderStatusChangedData{
		OrderID:   orderID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Note:      note,
	})
}

// PaymentSucceeded publishes a payment.succeeded event.
func (p *Producer) PaymentSucceeded(ctx context.Context, data PaymentData) {
	p.publish(ctx, TopicPaymentSucceeded, data.OrderID, AggregateTypeOrder, data)
}

// PaymentFailed publishes a payment.failed event.
func (p *Producer) PaymentFailed(ctx context.Context, data PaymentData) {
	p.publish(ctx, TopicPaymentFailed, data.OrderID, AggregateTypeOrder, data)
}

// PaymentRefunded publishes a payment.refunded event.
func (p *Producer) PaymentRefunded(ctx context.Context, data PaymentData) {
	p.publish(ctx, TopicPaymentRefunded, data.OrderID, AggregateTypeOrder, data)
}

// CartUpdated publishes a cart.updated event.
func (p *Producer) CartUpdated(ctx context.Context, cart *domain.Cart) {
	p.publish(ctx, TopicCartUpdated, cart.UserID, AggregateTypeCart, CartData{
		UserID:     cart.UserID,
		TotalItems: cart.TotalItems,
		TotalPrice: cart.TotalPrice,
	})
}

// CartCleared publishes a cart.cleared event.
func (p *Producer) CartCleared(ctx context.Context, userID string) {
	p.publish(ctx, TopicCartCleared, userID, AggregateTypeCart, CartData{UserID: userID})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) {
	if p.kafka == nil {
		return
	}

	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "create event failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		p.logger.ErrorContext(ctx, "publish event failed",
			slog.String("topic", topic),
			slog.String("aggregate_id", aggregateID),
			slog.String("error", err.Error()),
		)
		return
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
}
