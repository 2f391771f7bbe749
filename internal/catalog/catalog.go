// Package catalog provides product lookup. The checkout core only needs
// GetProductByID; the HTTP surface also lists and filters.
package catalog

import (
	"context"
	"sort"
	"sync"

	"shop-service/internal/models"
)

// Catalog resolves product ids against the live product collection.
type Catalog interface {
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// Memory is an in-memory catalog used in mock mode and tests.
type Memory struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{products: make(map[string]models.Product)}
}

// NewMemoryWith creates an in-memory catalog seeded with products.
func NewMemoryWith(products ...models.Product) *Memory {
	m := NewMemory()
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

// Put inserts or replaces a product.
func (m *Memory) Put(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// GetProductByID returns a copy of the product, or NotFoundError.
func (m *Memory) GetProductByID(_ context.Context, id string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "product", ID: id}
	}
	return &p, nil
}

// ListProducts returns all products ordered by id.
func (m *Memory) ListProducts(_ context.Context) ([]models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Seed returns the demo catalog used when CATALOG_SOURCE=memory.
func Seed() []models.Product {
	return []models.Product{
		{ID: "p-100", Name: "Wireless Earbuds", Brand: "Soniq", Category: "audio", PriceCents: 5999, DiscountPct: 10, Rating: 4.5, Stock: 120, ImageURL: "/img/p-100.jpg"},
		{ID: "p-101", Name: "Phone Stand", Brand: "DeskMate", Category: "accessories", PriceCents: 1299, Rating: 4.1, Stock: 300, ImageURL: "/img/p-101.jpg"},
		{ID: "p-102", Name: "USB-C Cable 2m", Brand: "Voltix", Category: "accessories", PriceCents: 899, Rating: 4.7, Stock: 540, ImageURL: "/img/p-102.jpg"},
		{ID: "p-103", Name: "Smart Watch", Brand: "Soniq", Category: "wearables", PriceCents: 19999, DiscountPct: 15, Rating: 4.3, Stock: 75, ImageURL: "/img/p-103.jpg"},
		{ID: "p-104", Name: "Travel Mug", Brand: "Thermik", Category: "home", PriceCents: 2499, Rating: 4.0, Stock: 210, ImageURL: "/img/p-104.jpg"},
	}
}
