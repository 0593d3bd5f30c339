package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/selimekin/storefront/internal/domain"
)

func TestShippingCost(t *testing.T) {
	p := NewPricer(5000)

	assert.Equal(t, int64(599), p.ShippingCost(domain.ShippingMethodStandard, 4999))
	assert.Equal(t, int64(599), p.ShippingCost(domain.ShippingMethodStandard, 5000))
	assert.Equal(t, int64(0), p.ShippingCost(domain.ShippingMethodStandard, 5001))
	assert.Equal(t, int64(1299), p.ShippingCost(domain.ShippingMethodExpress, 100000))
	assert.Equal(t, int64(2499), p.ShippingCost(domain.ShippingMethodOvernight, 100000))
}

func TestTaxAmount(t *testing.T) {
	p := NewPricer(5000)

	tests := []struct {
		state    string
		subtotal int64
		expected int64
	}{
		{"CA", 10000, 875},
		{"NY", 10000, 800},
		{"TX", 10000, 625},
		{"FL", 10000, 600},
		{"WA", 10000, 500},
		{"", 10000, 500},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.TaxAmount(tt.subtotal, tt.state))
		})
	}
}

func TestTaxAmount_RoundsToNearestCent(t *testing.T) {
	p := NewPricer(5000)

	// 1234 * 8.75% = 107.975 cents, rounds to 108.
	assert.Equal(t, int64(108), p.TaxAmount(1234, "CA"))
	// 101 * 5% = 5.05 cents, rounds to 5.
	assert.Equal(t, int64(5), p.TaxAmount(101, "WA"))
	// 110 * 5% = 5.5 cents, rounds to 6.
	assert.Equal(t, int64(6), p.TaxAmount(110, "WA"))
}

func TestPrice_Invariant(t *testing.T) {
	p := NewPricer(5000)

	for _, subtotal := range []int64{1, 101, 4999, 5000, 5001, 123456} {
		for _, method := range []string{domain.ShippingMethodStandard, domain.ShippingMethodExpress, domain.ShippingMethodOvernight} {
			pricing := p.Price(subtotal, method, "CA")
			assert.True(t, pricing.ValidatePricing(), "subtotal=%d method=%s", subtotal, method)
			assert.Equal(t, int64(0), pricing.Discount)
		}
	}
}

func TestEstimatedDelivery(t *testing.T) {
	p := NewPricer(5000)
	from := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, from.Add(7*24*time.Hour), p.EstimatedDelivery(domain.ShippingMethodStandard, from))
	assert.Equal(t, from.Add(3*24*time.Hour), p.EstimatedDelivery(domain.ShippingMethodExpress, from))
	assert.Equal(t, from.Add(24*time.Hour), p.EstimatedDelivery(domain.ShippingMethodOvernight, from))
}
