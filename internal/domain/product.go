package domain

import "time"

// Product categories.
const (
	CategoryElectronics = "Electronics"
	CategoryClothing    = "Clothing"
	CategoryBooks       = "Books"
	CategoryHomeGarden  = "Home & Garden"
	CategorySports      = "Sports"
	CategoryToys        = "Toys"
	CategoryBeauty      = "Beauty"
	CategoryAutomotive  = "Automotive"
	CategoryHealth      = "Health"
	CategoryFood        = "Food"
	CategoryOther       = "Other"
)

// Stock status values derived from the stock level.
const (
	StockStatusOut = "out-of-stock"
	StockStatusLow = "low-stock"
	StockStatusIn  = "in-stock"
)

// Product represents a catalog product. All monetary amounts are in cents.
type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Slug              string    `json:"slug"`
	Description       string    `json:"description"`
	SKU               string    `json:"sku"`
	Category          string    `json:"category"`
	Brand             string    `json:"brand,omitempty"`
	Price             int64     `json:"price"`
	ComparePrice      *int64    `json:"compare_price,omitempty"`
	Stock             int       `json:"stock"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	ImageURL          string    `json:"image_url,omitempty"`
	IsActive          bool      `json:"is_active"`
	IsFeatured        bool      `json:"is_featured"`
	AverageRating     float64   `json:"average_rating"`
	TotalReviews      int       `json:"total_reviews"`
	TotalSales        int       `json:"total_sales"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ValidCategories returns the set of valid product categories.
func ValidCategories() []string {
	return []string{
		CategoryElectronics, CategoryClothing, CategoryBooks, CategoryHomeGarden,
		CategorySports, CategoryToys, CategoryBeauty, CategoryAutomotive,
		CategoryHealth, CategoryFood, CategoryOther,
	}
}

// IsValidCategory checks whether the given string is a valid category.
func IsValidCategory(category string) bool {
	for _, c := range ValidCategories() {
		if c == category {
			return true
		}
	}
	return false
}

// StockStatus derives the stock status from the current stock level and the
// low stock threshold.
func (p *Product) StockStatus() string {
	switch {
	case p.Stock == 0:
		return StockStatusOut
	case p.Stock <= p.LowStockThreshold:
		return StockStatusLow
	default:
		return StockStatusIn
	}
}

// DiscountPercent returns the discount relative to the compare-at price,
// rounded down. Zero when no compare price is set or it is not higher than
// the selling price.
func (p *Product) DiscountPercent() int {
	if p.ComparePrice == nil || *p.ComparePrice <= p.Price {
		return 0
	}
	return int((*p.ComparePrice - p.Price) * 100 / *p.ComparePrice)
}

// HasStock reports whether the product can satisfy the requested quantity.
func (p *Product) HasStock(quantity int) bool {
	return p.Stock >= quantity
}
