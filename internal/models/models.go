package models

import "time"

// Product represents a catalog product. Immutable once fetched.
type Product struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Brand       string    `db:"brand" json:"brand"`
	Category    string    `db:"category" json:"category"`
	PriceCents  int64     `db:"price_cents" json:"price_cents"`
	DiscountPct float64   `db:"discount_pct" json:"discount_pct,omitempty"`
	Rating      float64   `db:"rating" json:"rating"`
	Stock       int       `db:"stock" json:"stock"`
	ImageURL    string    `db:"image_url" json:"image_url,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// FinalPriceCents applies the discount percentage, rounding half up to a cent.
func (p *Product) FinalPriceCents() int64 {
	if p.DiscountPct <= 0 {
		return p.PriceCents
	}
	discounted := float64(p.PriceCents) * (1 - p.DiscountPct/100)
	return int64(discounted + 0.5)
}

// CartEntry is one product selection in a cart. Quantity is always >= 1.
type CartEntry struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CartLine is a cart entry joined against the catalog.
type CartLine struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// SubtotalCents returns the extended price of this line.
func (l CartLine) SubtotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

// PaymentIntent is a provider-issued token for an authorized amount.
// Immutable; consumed exactly once by confirmation.
type PaymentIntent struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// PaymentMethod is a read-only payment option reported by the gateway.
type PaymentMethod struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	IconURL string `json:"icon_url,omitempty"`
}

// Payment method types
const (
	PaymentMethodTypeCard  = "CARD"
	PaymentMethodTypeOther = "OTHER"
)

// Payment intent statuses
const (
	IntentStatusRequiresConfirmation = "REQUIRES_CONFIRMATION"
	IntentStatusSucceeded            = "SUCCEEDED"
	IntentStatusFailed               = "FAILED"
)

// Address is a shipping destination in a user's address book.
type Address struct {
	ID        string    `db:"id" json:"id"`
	Label     string    `db:"label" json:"label,omitempty"`
	FullName  string    `db:"full_name" json:"full_name"`
	Line1     string    `db:"line1" json:"line1"`
	City      string    `db:"city" json:"city"`
	State     string    `db:"state" json:"state"`
	Zip       string    `db:"zip" json:"zip"`
	Phone     string    `db:"phone" json:"phone"`
	IsDefault bool      `db:"is_default" json:"is_default"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// OrderLine is a priced line item frozen at order creation time.
type OrderLine struct {
	OrderID        string `db:"order_id" json:"-"`
	ProductID      string `db:"product_id" json:"product_id"`
	Name           string `db:"name" json:"name"`
	UnitPriceCents int64  `db:"unit_price_cents" json:"unit_price_cents"`
	Quantity       int    `db:"quantity" json:"quantity"`
}

// Order is a finalized purchase. Only the status field changes after
// creation; line-item prices never track later catalog changes.
type Order struct {
	ID            string      `db:"id" json:"id"`
	SessionID     string      `db:"session_id" json:"session_id"`
	Items         []OrderLine `db:"-" json:"items"`
	SubtotalCents int64       `db:"subtotal_cents" json:"subtotal_cents"`
	TaxCents      int64       `db:"tax_cents" json:"tax_cents"`
	ShippingCents int64       `db:"shipping_cents" json:"shipping_cents"`
	TotalCents    int64       `db:"total_cents" json:"total_cents"`
	Status        string      `db:"status" json:"status"`
	ShippingAddr  Address     `db:"-" json:"shipping_address"`
	PaymentMethod string      `db:"payment_method" json:"payment_method"`
	PaymentRef    string      `db:"payment_ref" json:"payment_ref,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// Order statuses
const (
	OrderStatusPending             = "PENDING"
	OrderStatusConfirmed           = "CONFIRMED"
	OrderStatusShipped             = "SHIPPED"
	OrderStatusDelivered           = "DELIVERED"
	OrderStatusCancelled           = "CANCELLED"
	OrderStatusNeedsReconciliation = "NEEDS_RECONCILIATION"
)

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusNeedsReconciliation:
		return true
	}
	return false
}
