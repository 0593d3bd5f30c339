package service

import (
	"time"

	"github.com/selimekin/storefront/internal/domain"
)

// Shipping costs in cents by method.
var shippingCosts = map[string]int64{
	domain.ShippingMethodStandard:  599,
	domain.ShippingMethodExpress:   1299,
	domain.ShippingMethodOvernight: 2499,
}

// Estimated delivery lead time by method.
var deliveryLeadTimes = map[string]time.Duration{
	domain.ShippingMethodStandard:  7 * 24 * time.Hour,
	domain.ShippingMethodExpress:   3 * 24 * time.Hour,
	domain.ShippingMethodOvernight: 24 * time.Hour,
}

// Tax rates in basis points by state code. States not listed fall back to
// defaultTaxRateBP.
var taxRatesBP = map[string]int64{
	"CA": 875,
	"NY": 800,
	"TX": 625,
	"FL": 600,
}

const defaultTaxRateBP = 500

// Pricer computes the pricing breakdown for an order.
type Pricer struct {
	// freeShippingThreshold is the subtotal in cents above which standard
	// shipping is free.
	freeShippingThreshold int64
}

// NewPricer creates a pricer with the given free-shipping threshold in cents.
func NewPricer(freeShippingThreshold int64) *Pricer {
	return &Pricer{freeShippingThreshold: freeShippingThreshold}
}

// ShippingCost returns the shipping cost in cents for the method and subtotal.
func (p *Pricer) ShippingCost(method string, subtotal int64) int64 {
	if method == domain.ShippingMethodStandard && subtotal > p.freeShippingThreshold {
		return 0
	}
	return shippingCosts[method]
}

// TaxAmount returns the sales tax in cents for the subtotal and state code,
// rounded to the nearest cent.
func (p *Pricer) TaxAmount(subtotal int64, state string) int64 {
	rate, ok := taxRatesBP[state]
	if !ok {
		rate = defaultTaxRateBP
	}
	return (subtotal*rate + 5000) / 10000
}

// Price computes the full pricing breakdown for a subtotal, shipping method,
// and destination state. Discount is always zero.
func (p *Pricer) Price(subtotal int64, shippingMethod, state string) domain.Pricing {
	shipping := p.ShippingCost(shippingMethod, subtotal)
	tax := p.TaxAmount(subtotal, state)

	return domain.Pricing{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: 0,
		Total:    subtotal + shipping + tax,
	}
}

// EstimatedDelivery returns the projected delivery time for the method.
func (p *Pricer) EstimatedDelivery(method string, from time.Time) time.Time {
	lead, ok := deliveryLeadTimes[method]
	if !ok {
		lead = deliveryLeadTimes[domain.ShippingMethodStandard]
	}
	return from.Add(lead)
}
