package domain

import "time"

// Cart limits.
const (
	MaxCartLines       = 50
	MaxQuantityPerLine = 99
)

// Cart represents a user's shopping cart. One cart per user, one line per
// product. TotalItems and TotalPrice are derived from the lines and must be
// recomputed on every mutation.
type Cart struct {
	UserID     string     `json:"user_id"`
	Items      []CartItem `json:"items"`
	TotalItems int        `json:"total_items"`
	TotalPrice int64      `json:"total_price"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CartItem is a single cart line holding a product snapshot. UnitPrice is
// refreshed from the catalog whenever the line is touched.
type CartItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	ImageURL  string `json:"image_url,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// NewCart creates an empty cart for the given user.
func NewCart(userID string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		UserID:    userID,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LineTotal returns the extended price of the line.
func (i CartItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// FindItemIndex returns the index of the line for the given product, or -1.
func (c *Cart) FindItemIndex(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// RemoveItemAt deletes the line at the given index.
func (c *Cart) RemoveItemAt(idx int) {
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
}

// RecalculateTotals recomputes TotalItems and TotalPrice from the lines and
// stamps UpdatedAt. Call after every mutation, before persisting.
func (c *Cart) RecalculateTotals() {
	var items int
	var total int64
	for _, item := range c.Items {
		items += item.Quantity
		total += item.LineTotal()
	}
	c.TotalItems = items
	c.TotalPrice = total
	c.UpdatedAt = time.Now().UTC()
}

// Clear removes all lines and resets the derived totals.
func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.RecalculateTotals()
}
