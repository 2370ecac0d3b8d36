package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/perfume-shop-backend/internal/catalog"
)

const hour = time.Hour

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func catalogRepo() *catalog.InMemoryRepository {
	return catalog.NewInMemoryRepository([]catalog.Item{
		{ID: "a", Name: "Oud Royale", Price: decimal.NewFromInt(500), Category: "Oud", Stock: 5, Images: []string{"a1.jpg", "a2.jpg"}},
		{ID: "b", Name: "Rose Petal", Price: decimal.NewFromInt(1000), Category: "Rose", Stock: 2},
	})
}

func TestService_AddSnapshotsItem(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), catalogRepo())
	ctx := context.Background()
	c := svc.Create()

	got, err := svc.Add(ctx, c.ID, "a", 2)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "Oud Royale", got.Lines[0].Name)
	assert.Equal(t, "a1.jpg", got.Lines[0].Image)
	assert.Equal(t, "1000", got.Total().String())

	got, err = svc.Add(ctx, c.ID, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Lines[0].Quantity)
}

func TestService_AddDoesNotCheckStock(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), catalogRepo())
	c := svc.Create()

	got, err := svc.Add(context.Background(), c.ID, "b", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Lines[0].Quantity)
}

func TestService_AddErrors(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), catalogRepo())
	ctx := context.Background()
	c := svc.Create()

	_, err := svc.Add(ctx, c.ID, "a", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.Add(ctx, c.ID, "zzz", 1)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = svc.Add(ctx, "unknown-cart", "a", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_SettleKeepsUnpaidLines(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), catalogRepo())
	ctx := context.Background()
	c := svc.Create()
	_, err := svc.Add(ctx, c.ID, "a", 2)
	require.NoError(t, err)
	paid, err := svc.Get(c.ID)
	require.NoError(t, err)

	_, err = svc.Add(ctx, c.ID, "b", 1)
	require.NoError(t, err)
	require.NoError(t, svc.Settle(c.ID, paid.Lines))

	got, err := svc.Get(c.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "b", got.Lines[0].ItemID)

	assert.ErrorIs(t, svc.Settle("unknown-cart", paid.Lines), ErrNotFound)
}
