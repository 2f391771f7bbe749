// Package profile manages the user's address book.
package profile

import (
	"context"
	"strings"
	"sync"
	"time"

	"shop-service/internal/models"

	"github.com/google/uuid"
)

// AddressBook stores shipping addresses per session.
type AddressBook struct {
	mu        sync.RWMutex
	addresses map[string][]models.Address // session id -> addresses
}

// NewAddressBook creates an empty address book.
func NewAddressBook() *AddressBook {
	return &AddressBook{addresses: make(map[string][]models.Address)}
}

// Add validates and stores a new address. The first address of a session
// becomes the default.
func (b *AddressBook) Add(_ context.Context, sessionID string, addr models.Address) (*models.Address, error) {
	if err := validate(addr); err != nil {
		return nil, err
	}

	addr.ID = uuid.New().String()
	addr.CreatedAt = time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.addresses[sessionID]
	if len(list) == 0 {
		addr.IsDefault = true
	} else if addr.IsDefault {
		for i := range list {
			list[i].IsDefault = false
		}
	}
	b.addresses[sessionID] = append(list, addr)

	out := addr
	return &out, nil
}

// List returns the session's addresses, default first.
func (b *AddressBook) List(_ context.Context, sessionID string) []models.Address {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list := b.addresses[sessionID]
	out := make([]models.Address, 0, len(list))
	for _, a := range list {
		if a.IsDefault {
			out = append(out, a)
		}
	}
	for _, a := range list {
		if !a.IsDefault {
			out = append(out, a)
		}
	}
	return out
}

// Get returns one address by id.
func (b *AddressBook) Get(_ context.Context, sessionID, id string) (*models.Address, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, a := range b.addresses[sessionID] {
		if a.ID == id {
			out := a
			return &out, nil
		}
	}
	return nil, &models.NotFoundError{Kind: "address", ID: id}
}

// SetDefault marks the address as the session's default.
func (b *AddressBook) SetDefault(_ context.Context, sessionID, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.addresses[sessionID]
	var found bool
	for i := range list {
		if list[i].ID == id {
			found = true
			break
		}
	}
	if !found {
		return &models.NotFoundError{Kind: "address", ID: id}
	}
	for i := range list {
		list[i].IsDefault = list[i].ID == id
	}
	return nil
}

// Remove deletes an address. Removing the default promotes the oldest
// remaining address.
func (b *AddressBook) Remove(_ context.Context, sessionID, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.addresses[sessionID]
	idx := -1
	for i := range list {
		if list[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &models.NotFoundError{Kind: "address", ID: id}
	}

	wasDefault := list[idx].IsDefault
	list = append(list[:idx], list[idx+1:]...)
	if wasDefault && len(list) > 0 {
		list[0].IsDefault = true
	}
	b.addresses[sessionID] = list
	return nil
}

func validate(addr models.Address) error {
	required := []struct {
		field string
		value string
	}{
		{"full_name", addr.FullName},
		{"line1", addr.Line1},
		{"city", addr.City},
		{"state", addr.State},
		{"zip", addr.Zip},
		{"phone", addr.Phone},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &models.ValidationError{Field: r.field, Message: "is required"}
		}
	}
	return nil
}
