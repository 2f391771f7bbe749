package profile

import (
	"context"
	"testing"

	"shop-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAddress() models.Address {
	return models.Address{
		FullName: "Dana Smith",
		Line1:    "1 Main St",
		City:     "Springfield",
		State:    "IL",
		Zip:      "62701",
		Phone:    "555-0100",
	}
}

func TestFirstAddressBecomesDefault(t *testing.T) {
	book := NewAddressBook()
	ctx := context.Background()

	first, err := book.Add(ctx, "s-1", sampleAddress())
	require.NoError(t, err)
	assert.True(t, first.IsDefault)

	second, err := book.Add(ctx, "s-1", sampleAddress())
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	list := book.List(ctx, "s-1")
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
}

func TestAddValidatesRequiredFields(t *testing.T) {
	book := NewAddressBook()

	addr := sampleAddress()
	addr.Zip = ""

	_, err := book.Add(context.Background(), "s-1", addr)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "zip", verr.Field)
}

func TestSetDefault(t *testing.T) {
	book := NewAddressBook()
	ctx := context.Background()

	first, _ := book.Add(ctx, "s-1", sampleAddress())
	second, _ := book.Add(ctx, "s-1", sampleAddress())

	require.NoError(t, book.SetDefault(ctx, "s-1", second.ID))

	got, err := book.Get(ctx, "s-1", second.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)

	got, err = book.Get(ctx, "s-1", first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)
}

func TestRemoveDefaultPromotesNext(t *testing.T) {
	book := NewAddressBook()
	ctx := context.Background()

	first, _ := book.Add(ctx, "s-1", sampleAddress())
	second, _ := book.Add(ctx, "s-1", sampleAddress())

	require.NoError(t, book.Remove(ctx, "s-1", first.ID))

	got, err := book.Get(ctx, "s-1", second.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)
}

func TestSessionsAreIsolated(t *testing.T) {
	book := NewAddressBook()
	ctx := context.Background()

	_, err := book.Add(ctx, "s-1", sampleAddress())
	require.NoError(t, err)

	assert.Empty(t, book.List(ctx, "s-2"))

	err = book.SetDefault(ctx, "s-2", "nope")
	var nferr *models.NotFoundError
	require.ErrorAs(t, err, &nferr)
}
