package orders

import (
	"context"
	"testing"

	"shop-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder(id string) *models.Order {
	return &models.Order{
		ID:        id,
		SessionID: "s-1",
		Items: []models.OrderLine{
			{ProductID: "p-a", Name: "Product A", UnitPriceCents: 1000, Quantity: 2},
		},
		SubtotalCents: 2000,
		TaxCents:      160,
		TotalCents:    2160,
		Status:        models.OrderStatusPending,
	}
}

func TestAppendAndGet(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, sampleOrder("o-1")))
	require.NoError(t, repo.Append(ctx, sampleOrder("o-2")))

	order, err := repo.GetByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", order.ID)
	assert.False(t, order.CreatedAt.IsZero())

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "o-1", list[0].ID)
	assert.Equal(t, "o-2", list[1].ID)
}

func TestGetAbsent(t *testing.T) {
	repo := NewMemory()

	_, err := repo.GetByID(context.Background(), "o-missing")

	var nferr *models.NotFoundError
	require.ErrorAs(t, err, &nferr)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, sampleOrder("o-1")))
	require.NoError(t, repo.UpdateStatus(ctx, "o-1", models.OrderStatusShipped))

	order, err := repo.GetByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, order.Status)
}

func TestUpdateStatusAbsent(t *testing.T) {
	repo := NewMemory()

	err := repo.UpdateStatus(context.Background(), "o-missing", models.OrderStatusShipped)

	var nferr *models.NotFoundError
	require.ErrorAs(t, err, &nferr)
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, sampleOrder("o-1")))

	err := repo.UpdateStatus(ctx, "o-1", "TELEPORTED")

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestListBySession(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	o1 := sampleOrder("o-1")
	o2 := sampleOrder("o-2")
	o2.SessionID = "s-2"
	require.NoError(t, repo.Append(ctx, o1))
	require.NoError(t, repo.Append(ctx, o2))

	list, err := repo.ListBySession(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "o-1", list[0].ID)
}

func TestReadsAreSnapshots(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, sampleOrder("o-1")))

	order, err := repo.GetByID(ctx, "o-1")
	require.NoError(t, err)
	order.Status = "CANCELLED"
	order.Items[0].Quantity = 99

	fresh, err := repo.GetByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, fresh.Status)
	assert.Equal(t, 2, fresh.Items[0].Quantity)
}

func TestSubscribeRepublishesCollection(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	sub := repo.Subscribe()

	require.NoError(t, repo.Append(ctx, sampleOrder("o-1")))
	snapshot := <-sub
	require.Len(t, snapshot, 1)

	require.NoError(t, repo.UpdateStatus(ctx, "o-1", models.OrderStatusConfirmed))
	snapshot = <-sub
	require.Len(t, snapshot, 1)
	assert.Equal(t, models.OrderStatusConfirmed, snapshot[0].Status)
}

func TestSlowSubscriberGetsLatest(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()

	sub := repo.Subscribe()

	require.NoError(t, repo.Append(ctx, sampleOrder("o-1")))
	require.NoError(t, repo.Append(ctx, sampleOrder("o-2")))
	require.NoError(t, repo.Append(ctx, sampleOrder("o-3")))

	// Intermediate snapshots may be dropped, but the last one queued
	// reflects the full collection.
	var latest []models.Order
	for {
		select {
		case snapshot := <-sub:
			latest = snapshot
			continue
		default:
		}
		break
	}
	require.Len(t, latest, 3)
}
