package store

import (
	"context"
	"database/sql"
	"fmt"

	"shop-service/internal/models"
)

type orderRow struct {
	ID            string       `db:"id"`
	SessionID     string       `db:"session_id"`
	SubtotalCents int64        `db:"subtotal_cents"`
	TaxCents      int64        `db:"tax_cents"`
	ShippingCents int64        `db:"shipping_cents"`
	TotalCents    int64        `db:"total_cents"`
	Status        string       `db:"status"`
	ShipName      string       `db:"ship_name"`
	ShipLine1     string       `db:"ship_line1"`
	ShipCity      string       `db:"ship_city"`
	ShipState     string       `db:"ship_state"`
	ShipZip       string       `db:"ship_zip"`
	ShipPhone     string       `db:"ship_phone"`
	PaymentMethod string       `db:"payment_method"`
	PaymentRef    string       `db:"payment_ref"`
	CreatedAt     sql.NullTime `db:"created_at"`
	UpdatedAt     sql.NullTime `db:"updated_at"`
}

func (r *orderRow) toOrder() models.Order {
	o := models.Order{
		ID:            r.ID,
		SessionID:     r.SessionID,
		SubtotalCents: r.SubtotalCents,
		TaxCents:      r.TaxCents,
		ShippingCents: r.ShippingCents,
		TotalCents:    r.TotalCents,
		Status:        r.Status,
		ShippingAddr: models.Address{
			FullName: r.ShipName,
			Line1:    r.ShipLine1,
			City:     r.ShipCity,
			State:    r.ShipState,
			Zip:      r.ShipZip,
			Phone:    r.ShipPhone,
		},
		PaymentMethod: r.PaymentMethod,
		PaymentRef:    r.PaymentRef,
	}
	if r.CreatedAt.Valid {
		o.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		o.UpdatedAt = r.UpdatedAt.Time
	}
	return o
}

// UpsertOrder writes a finalized order and its line items. Idempotent on
// the order id, so replaying a placed-order event is safe.
func (s *Store) UpsertOrder(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (id, session_id, subtotal_cents, tax_cents, shipping_cents, total_cents,
			status, ship_name, ship_line1, ship_city, ship_state, ship_zip, ship_phone,
			payment_method, payment_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = NOW()`

	_, err = tx.ExecContext(ctx, query,
		order.ID, order.SessionID, order.SubtotalCents, order.TaxCents, order.ShippingCents,
		order.TotalCents, order.Status,
		order.ShippingAddr.FullName, order.ShippingAddr.Line1, order.ShippingAddr.City,
		order.ShippingAddr.State, order.ShippingAddr.Zip, order.ShippingAddr.Phone,
		order.PaymentMethod, order.PaymentRef, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert order: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", order.ID); err != nil {
		return fmt.Errorf("failed to reset order items: %w", err)
	}

	for _, item := range order.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, unit_price_cents, quantity)
			VALUES ($1, $2, $3, $4, $5)`,
			order.ID, item.ProductID, item.Name, item.UnitPriceCents, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order with its line items
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "order", ID: id}
	}
	if err != nil {
		return nil, err
	}

	order := row.toOrder()
	if err := s.db.SelectContext(ctx, &order.Items,
		"SELECT * FROM order_items WHERE order_id = $1", id); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersBySession retrieves a session's orders, newest first
func (s *Store) GetOrdersBySession(ctx context.Context, sessionID string) ([]models.Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM orders WHERE session_id = $1 ORDER BY created_at DESC", sessionID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Order, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toOrder())
	}
	return out, nil
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &models.NotFoundError{Kind: "order", ID: orderID}
	}
	return nil
}
