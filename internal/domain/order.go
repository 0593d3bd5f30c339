package domain

import "time"

// Order status constants.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment status constants.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Payment method constants.
const (
	PaymentMethodCard           = "card"
	PaymentMethodCashOnDelivery = "cash_on_delivery"
)

// Shipping method constants.
const (
	ShippingMethodStandard  = "standard"
	ShippingMethodExpress   = "express"
	ShippingMethodOvernight = "overnight"
)

// Order represents a customer order. All monetary amounts are in cents.
type Order struct {
	ID              string               `json:"id"`
	OrderNumber     string               `json:"order_number"`
	UserID          string               `json:"user_id"`
	Status          string               `json:"status"`
	Items           []OrderItem          `json:"items"`
	ShippingAddress Address              `json:"shipping_address"`
	BillingAddress  Address              `json:"billing_address"`
	Payment         PaymentInfo          `json:"payment"`
	Shipping        ShippingInfo         `json:"shipping"`
	Pricing         Pricing              `json:"pricing"`
	CustomerNote    string               `json:"customer_note,omitempty"`
	AdminNote       string               `json:"admin_note,omitempty"`
	StatusHistory   []StatusHistoryEntry `json:"status_history,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// OrderItem is an order line holding an immutable product snapshot taken at
// checkout time.
type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	ImageURL  string `json:"image_url,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

// Address represents a shipping or billing address.
type Address struct {
	FirstName string `json:"first_name" validate:"required,max=50"`
	LastName  string `json:"last_name" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Street    string `json:"street" validate:"required,max=200"`
	City      string `json:"city" validate:"required,max=100"`
	State     string `json:"state" validate:"required,max=50"`
	Zip       string `json:"zip" validate:"required,max=20"`
	Country   string `json:"country" validate:"required,max=56"`
}

// PaymentInfo carries the payment state of an order.
type PaymentInfo struct {
	Method        string     `json:"method"`
	IntentID      string     `json:"intent_id,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// ShippingInfo carries the fulfilment state of an order.
type ShippingInfo struct {
	Method            string     `json:"method"`
	Cost              int64      `json:"cost"`
	Carrier           string     `json:"carrier,omitempty"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`
}

// Pricing breaks down the order total. The invariant
// Total = Subtotal + Shipping + Tax - Discount holds at all times.
type Pricing struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

// StatusHistoryEntry is an append-only record of a status change.
type StatusHistoryEntry struct {
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidStatuses returns all valid order statuses.
func ValidStatuses() []string {
	return []string{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusProcessing,
		OrderStatusShipped,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}
}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsValidShippingMethod checks if a shipping method string is valid.
func IsValidShippingMethod(method string) bool {
	switch method {
	case ShippingMethodStandard, ShippingMethodExpress, ShippingMethodOvernight:
		return true
	}
	return false
}

// AllowedTransitions defines which order status transitions are valid.
// Delivered and cancelled are terminal.
func AllowedTransitions() map[string][]string {
	return map[string][]string{
		OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
		OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
		OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
		OrderStatusShipped:    {OrderStatusDelivered},
		OrderStatusDelivered:  {},
		OrderStatusCancelled:  {},
	}
}

// CanTransitionTo checks if the order can transition to the target status.
func (o *Order) CanTransitionTo(target string) bool {
	allowed, ok := AllowedTransitions()[o.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// TotalItems returns the total quantity across all order lines.
func (o *Order) TotalItems() int {
	var count int
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// ValidatePricing reports whether the pricing breakdown is internally
// consistent: non-negative components and a total matching the sum.
func (p Pricing) ValidatePricing() bool {
	if p.Subtotal < 0 || p.Shipping < 0 || p.Tax < 0 || p.Discount < 0 || p.Total < 0 {
		return false
	}
	return p.Total == p.Subtotal+p.Shipping+p.Tax-p.Discount
}
