// Package pricing derives order totals from cart line items. All amounts
// are integer cents; the tax computation rounds half up to the nearest
// cent so that repeated quotes over the same cart are exact.
package pricing

import "shop-service/internal/models"

// Defaults match the storefront's flat 8% tax and free shipping.
const (
	DefaultTaxRateBps        = 800
	DefaultShippingFlatCents = 0
)

// Quote is the priced breakdown of a cart.
type Quote struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	TaxCents      int64 `json:"tax_cents"`
	ShippingCents int64 `json:"shipping_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// Calculator computes quotes. The zero value is not usable; construct
// with New.
type Calculator struct {
	taxRateBps    int64
	shippingCents int64
}

// New creates a calculator with the given tax rate (basis points) and
// flat shipping amount in cents.
func New(taxRateBps int, shippingCents int64) *Calculator {
	return &Calculator{
		taxRateBps:    int64(taxRateBps),
		shippingCents: shippingCents,
	}
}

// NewDefault creates a calculator with the storefront defaults.
func NewDefault() *Calculator {
	return New(DefaultTaxRateBps, DefaultShippingFlatCents)
}

// Subtotal sums unit price times quantity over the lines.
func (c *Calculator) Subtotal(lines []models.CartLine) int64 {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.UnitPriceCents * int64(l.Quantity)
	}
	return subtotal
}

// Tax applies the tax rate to a subtotal, rounding half up.
func (c *Calculator) Tax(subtotalCents int64) int64 {
	return (subtotalCents*c.taxRateBps + 5000) / 10000
}

// Compute returns the full quote for the given lines. Pure and
// deterministic: no I/O, no side effects.
func (c *Calculator) Compute(lines []models.CartLine) Quote {
	subtotal := c.Subtotal(lines)
	tax := c.Tax(subtotal)
	return Quote{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		ShippingCents: c.shippingCents,
		TotalCents:    subtotal + tax + c.shippingCents,
	}
}
