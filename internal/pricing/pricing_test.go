package pricing

import (
	"testing"

	"shop-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestComputeQuote(t *testing.T) {
	calc := NewDefault()

	lines := []models.CartLine{
		{ProductID: "p-1", UnitPriceCents: 1000, Quantity: 2},
		{ProductID: "p-2", UnitPriceCents: 500, Quantity: 1},
	}

	quote := calc.Compute(lines)

	assert.Equal(t, int64(2500), quote.SubtotalCents)
	assert.Equal(t, int64(200), quote.TaxCents) // 8% of $25.00
	assert.Equal(t, int64(0), quote.ShippingCents)
	assert.Equal(t, int64(2700), quote.TotalCents)
}

func TestComputeEmptyCart(t *testing.T) {
	calc := NewDefault()

	quote := calc.Compute(nil)

	assert.Equal(t, int64(0), quote.SubtotalCents)
	assert.Equal(t, int64(0), quote.TaxCents)
	assert.Equal(t, int64(0), quote.TotalCents)
}

func TestTaxRoundsHalfUp(t *testing.T) {
	calc := NewDefault()

	tests := []struct {
		subtotal int64
		tax      int64
	}{
		{1234, 99}, // 98.72 rounds up
		{100, 8},   // exact
		{106, 8},   // 8.48 rounds down
		{107, 9},   // 8.56 rounds up
		{1, 0},     // 0.08 rounds down
		{7, 1},     // 0.56 rounds up
	}

	for _, tt := range tests {
		assert.Equal(t, tt.tax, calc.Tax(tt.subtotal), "subtotal=%d", tt.subtotal)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	calc := New(800, 0)
	lines := []models.CartLine{
		{ProductID: "p-1", UnitPriceCents: 1999, Quantity: 3},
	}

	first := calc.Compute(lines)
	second := calc.Compute(lines)

	assert.Equal(t, first, second)
	assert.Equal(t, first.SubtotalCents+first.TaxCents+first.ShippingCents, first.TotalCents)
}

func TestFlatShipping(t *testing.T) {
	calc := New(800, 499)
	lines := []models.CartLine{
		{ProductID: "p-1", UnitPriceCents: 1000, Quantity: 1},
	}

	quote := calc.Compute(lines)

	assert.Equal(t, int64(499), quote.ShippingCents)
	assert.Equal(t, int64(1000+80+499), quote.TotalCents)
}
