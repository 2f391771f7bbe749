package cart

import (
	"context"
	"sync"
	"testing"

	"shop-service/internal/catalog"
	"shop-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *catalog.Memory {
	return catalog.NewMemoryWith(
		models.Product{ID: "p-a", Name: "Product A", PriceCents: 1000},
		models.Product{ID: "p-b", Name: "Product B", PriceCents: 500},
		models.Product{ID: "p-c", Name: "Product C", PriceCents: 2000, DiscountPct: 25},
	)
}

func TestAddMergesQuantities(t *testing.T) {
	store := NewStore("s-1", testCatalog(), nil)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "p-a", 2))
	require.NoError(t, store.Add(ctx, "p-a", 3))

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 5, entries[0].Quantity)
	assert.Equal(t, 5, store.ItemCount())
}

func TestAddUnknownProduct(t *testing.T) {
	store := NewStore("s-1", testCatalog(), nil)

	err := store.Add(context.Background(), "p-missing", 1)

	var nferr *models.NotFoundError
	require.ErrorAs(t, err, &nferr)
	assert.Empty(t, store.Entries())
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	store := NewStore("s-1", testCatalog(), nil)

	err := store.Add(context.Background(), "p-a", 0)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "quantity", verr.Field)
}

func TestUpdateQuantityOverwrites(t *testing.T) {
	store := NewStore("s-1", testCatalog(), nil)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "p-a", 2))
	require.NoError(t, store.UpdateQuantity(ctx, "p-a", 7))

	assert.Equal(t, 7, store.ItemCount())
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	store := NewStore("s-1", testCatalog(), nil)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "p-a", 2))
	require.NoError(t, store.UpdateQuantity(ctx, "p-a", 0))

	assert.Empty(t, store.Entries())

	require.NoError(t, store.Add(ctx, "p-a", 2))
	require.NoError(t, store.UpdateQuantity(ctx, "p-a", -3))
	assert.Empty(t, store.Entries())
}

func TestRemoveAbsentEntry(t *testing.T) {
	store := NewStore("s-1", testCatalog(), nil)

	err := store.Remove(context.Background(), "p-a")

	var nferr *models.NotFoundError
	require.ErrorAs(t, err, &nferr)
}

func TestClearIsIdempotent(t *testing.T) {
	store := NewStore("s-1", testCatalog(), nil)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "p-a", 2))
	require.NoError(t, store.Add(ctx, "p-b", 1))

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))

	assert.Empty(t, store.Entries())
	assert.Equal(t, 0, store.ItemCount())
	total, err := store.TotalCents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestTotalUsesFinalPrice(t *testing.T) {
	store := NewStore("s-1", testCatalog(), nil)
	ctx := context.Background()

	// p-c lists at $20.00 with a 25% discount.
	require.NoError(t, store.Add(ctx, "p-c", 2))
	require.NoError(t, store.Add(ctx, "p-b", 1))

	total, err := store.TotalCents(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2*1500+500), total)
}

func TestLinesJoinCatalog(t *testing.T) {
	store := NewStore("s-1", testCatalog(), nil)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "p-a", 2))
	require.NoError(t, store.Add(ctx, "p-b", 1))

	lines, err := store.Lines(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	// Sorted by product id.
	assert.Equal(t, "p-a", lines[0].ProductID)
	assert.Equal(t, "Product A", lines[0].Name)
	assert.Equal(t, int64(1000), lines[0].UnitPriceCents)
	assert.Equal(t, int64(2000), lines[0].SubtotalCents())
	assert.Equal(t, "p-b", lines[1].ProductID)
}

func TestInvariantsUnderMutationSequences(t *testing.T) {
	store := NewStore("s-1", testCatalog(), nil)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "p-a", 1))
	require.NoError(t, store.Add(ctx, "p-b", 4))
	require.NoError(t, store.Add(ctx, "p-a", 2))
	require.NoError(t, store.UpdateQuantity(ctx, "p-b", 1))
	require.NoError(t, store.Remove(ctx, "p-a"))
	require.NoError(t, store.Add(ctx, "p-a", 1))
	require.NoError(t, store.UpdateQuantity(ctx, "p-a", -1))

	seen := make(map[string]bool)
	for _, e := range store.Entries() {
		assert.False(t, seen[e.ProductID], "duplicate entry for %s", e.ProductID)
		seen[e.ProductID] = true
		assert.Greater(t, e.Quantity, 0)
	}
	assert.Equal(t, 1, store.ItemCount())
}

func TestConcurrentAdds(t *testing.T) {
	store := NewStore("s-1", testCatalog(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Add(ctx, "p-a", 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, store.ItemCount())
	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 50, entries[0].Quantity)
}
