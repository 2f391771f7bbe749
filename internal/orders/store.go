// Package orders owns the finalized order collection. Orders are created
// exactly once at checkout completion and afterwards change only through
// status updates; reads always return detached copies.
package orders

import (
	"context"
	"sync"
	"time"

	"shop-service/internal/models"
)

// Repository is the persistence boundary for orders. Backed by memory in
// mock mode and by Postgres in production.
type Repository interface {
	Append(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context) ([]models.Order, error)
	ListBySession(ctx context.Context, sessionID string) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// Memory is an in-memory order repository. Each change republishes the
// full collection to subscribers.
type Memory struct {
	mu     sync.RWMutex
	orders []models.Order
	subs   []chan []models.Order
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{}
}

// Append adds the order to the tail of the collection.
func (m *Memory) Append(_ context.Context, order *models.Order) error {
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	m.mu.Lock()
	m.orders = append(m.orders, cloneOrder(order))
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snapshot)
	return nil
}

// GetByID returns a copy of the order, or NotFoundError.
func (m *Memory) GetByID(_ context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.orders {
		if m.orders[i].ID == id {
			o := cloneOrder(&m.orders[i])
			return &o, nil
		}
	}
	return nil, &models.NotFoundError{Kind: "order", ID: id}
}

// List returns a snapshot of all orders in insertion order.
func (m *Memory) List(_ context.Context) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(), nil
}

// ListBySession returns the session's orders, newest last.
func (m *Memory) ListBySession(_ context.Context, sessionID string) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Order
	for i := range m.orders {
		if m.orders[i].SessionID == sessionID {
			out = append(out, cloneOrder(&m.orders[i]))
		}
	}
	return out, nil
}

// UpdateStatus replaces the order's status by id match.
func (m *Memory) UpdateStatus(_ context.Context, id, status string) error {
	if !models.ValidOrderStatus(status) {
		return &models.ValidationError{Field: "status", Message: "unknown order status " + status}
	}

	m.mu.Lock()
	var found bool
	for i := range m.orders {
		if m.orders[i].ID == id {
			m.orders[i].Status = status
			m.orders[i].UpdatedAt = time.Now()
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return &models.NotFoundError{Kind: "order", ID: id}
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snapshot)
	return nil
}

// Subscribe returns a channel that receives the full collection after
// every change. A slow subscriber only ever misses intermediate
// snapshots, never the latest one.
func (m *Memory) Subscribe() <-chan []models.Order {
	ch := make(chan []models.Order, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

func (m *Memory) publish(snapshot []models.Order) {
	m.mu.RLock()
	subs := m.subs
	m.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
			// Drop the stale pending snapshot and queue the fresh one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (m *Memory) snapshotLocked() []models.Order {
	out := make([]models.Order, len(m.orders))
	for i := range m.orders {
		out[i] = cloneOrder(&m.orders[i])
	}
	return out
}

func cloneOrder(o *models.Order) models.Order {
	c := *o
	c.Items = make([]models.OrderLine, len(o.Items))
	copy(c.Items, o.Items)
	return c
}
