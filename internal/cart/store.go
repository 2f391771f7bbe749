// Package cart implements the per-session shopping cart. Mutations
// replace the entry map wholesale under the lock, so readers always see
// a complete snapshot and never a partial update.
package cart

import (
	"context"
	"sort"
	"sync"
	"time"

	"shop-service/internal/catalog"
	"shop-service/internal/models"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

// Mirror receives best-effort copies of the cart for remote sync. Mirror
// failures never affect the local operation.
type Mirror interface {
	SaveCartSnapshot(ctx context.Context, sessionID string, entries map[string]int) error
	ClearCart(ctx context.Context, sessionID string) error
}

// Store holds one session's cart entries keyed by product id. At most one
// entry per product, quantity always >= 1.
type Store struct {
	sessionID string
	catalog   catalog.Catalog
	mirror    Mirror
	logger    *zap.Logger

	mu      sync.RWMutex
	entries map[string]models.CartEntry
}

// NewStore creates an empty cart for the session. mirror may be nil.
func NewStore(sessionID string, cat catalog.Catalog, mirror Mirror) *Store {
	return &Store{
		sessionID: sessionID,
		catalog:   cat,
		mirror:    mirror,
		logger:    util.GetLogger(),
		entries:   make(map[string]models.CartEntry),
	}
}

// SessionID returns the owning session id.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Add merges quantity into an existing entry or creates one. The product
// must resolve in the catalog.
func (s *Store) Add(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return &models.ValidationError{Field: "quantity", Message: "must be at least 1"}
	}

	if _, err := s.catalog.GetProductByID(ctx, productID); err != nil {
		return err
	}

	s.mu.Lock()
	next := s.copyEntries()
	entry := next[productID]
	entry.ProductID = productID
	entry.Quantity += quantity
	next[productID] = entry
	s.entries = next
	s.mu.Unlock()

	util.CartMutationsTotal.WithLabelValues("add").Inc()
	s.syncMirror(next)
	return nil
}

// UpdateQuantity overwrites an entry's quantity. A quantity <= 0 removes
// the entry.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}

	s.mu.Lock()
	if _, ok := s.entries[productID]; !ok {
		s.mu.Unlock()
		return &models.NotFoundError{Kind: "cart entry", ID: productID}
	}
	next := s.copyEntries()
	next[productID] = models.CartEntry{ProductID: productID, Quantity: quantity}
	s.entries = next
	s.mu.Unlock()

	util.CartMutationsTotal.WithLabelValues("update").Inc()
	s.syncMirror(next)
	return nil
}

// Remove deletes an entry.
func (s *Store) Remove(_ context.Context, productID string) error {
	s.mu.Lock()
	if _, ok := s.entries[productID]; !ok {
		s.mu.Unlock()
		return &models.NotFoundError{Kind: "cart entry", ID: productID}
	}
	next := s.copyEntries()
	delete(next, productID)
	s.entries = next
	s.mu.Unlock()

	util.CartMutationsTotal.WithLabelValues("remove").Inc()
	s.syncMirror(next)
	return nil
}

// Clear empties the cart. Idempotent.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]models.CartEntry)
	s.mu.Unlock()

	util.CartMutationsTotal.WithLabelValues("clear").Inc()

	if s.mirror != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.mirror.ClearCart(ctx, s.sessionID); err != nil {
				util.CartSyncFailedTotal.Inc()
				s.logger.Warn("Cart mirror clear failed",
					zap.String("session_id", s.sessionID),
					zap.Error(err))
			}
		}()
	}
	return nil
}

// ItemCount returns the sum of quantities over all entries.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	for _, e := range s.entries {
		count += e.Quantity
	}
	return count
}

// Entries returns a snapshot of the raw entries ordered by product id.
func (s *Store) Entries() []models.CartEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CartEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// Lines joins the entries against the catalog, pricing each line at the
// product's current final (discounted) price.
func (s *Store) Lines(ctx context.Context) ([]models.CartLine, error) {
	entries := s.Entries()

	lines := make([]models.CartLine, 0, len(entries))
	for _, e := range entries {
		p, err := s.catalog.GetProductByID(ctx, e.ProductID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, models.CartLine{
			ProductID:      p.ID,
			Name:           p.Name,
			UnitPriceCents: p.FinalPriceCents(),
			Quantity:       e.Quantity,
		})
	}
	return lines, nil
}

// TotalCents returns the sum of final price times quantity over the cart.
func (s *Store) TotalCents(ctx context.Context) (int64, error) {
	lines, err := s.Lines(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, l := range lines {
		total += l.SubtotalCents()
	}
	return total, nil
}

func (s *Store) copyEntries() map[string]models.CartEntry {
	next := make(map[string]models.CartEntry, len(s.entries)+1)
	for k, v := range s.entries {
		next[k] = v
	}
	return next
}

// syncMirror pushes the snapshot to the mirror in the background.
// Best effort: failures are logged and swallowed.
func (s *Store) syncMirror(entries map[string]models.CartEntry) {
	if s.mirror == nil {
		return
	}

	snapshot := make(map[string]int, len(entries))
	for id, e := range entries {
		snapshot[id] = e.Quantity
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.mirror.SaveCartSnapshot(ctx, s.sessionID, snapshot); err != nil {
			util.CartSyncFailedTotal.Inc()
			s.logger.Warn("Cart mirror sync failed",
				zap.String("session_id", s.sessionID),
				zap.Error(err))
		}
	}()
}
