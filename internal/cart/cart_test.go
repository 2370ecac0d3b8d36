package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(id string, price int64, qty int) Line {
	return Line{ItemID: id, Name: "item " + id, Price: decimal.NewFromInt(price), Quantity: qty}
}

func TestCart_AddMergesSameItem(t *testing.T) {
	var c Cart
	c.Add(line("a", 500, 1))
	c.Add(line("a", 500, 2))

	require.Len(t, c.Lines, 1)
	assert.Equal(t, 3, c.Lines[0].Quantity)
}

func TestCart_DistinctItemsKeepSeparateLines(t *testing.T) {
	var c Cart
	c.Add(line("a", 500, 1))
	c.Add(line("b", 1000, 1))
	c.Add(line("a", 500, 1))

	require.Len(t, c.Lines, 2)
	assert.Equal(t, "a", c.Lines[0].ItemID)
	assert.Equal(t, "b", c.Lines[1].ItemID)
	assert.Equal(t, 3, c.Count())
}

func TestCart_TotalTracksLines(t *testing.T) {
	var c Cart
	assert.True(t, c.Total().IsZero())

	c.Add(line("a", 500, 2))
	c.Add(line("b", 1000, 1))
	assert.Equal(t, "2000", c.Total().String())

	c.UpdateQuantity("b", 3)
	assert.Equal(t, "4000", c.Total().String())

	c.Remove("a")
	assert.Equal(t, "3000", c.Total().String())

	c.Deduct([]Line{line("b", 1000, 3)})
	assert.True(t, c.Empty())
	assert.True(t, c.Total().IsZero())
}

func TestCart_DeductLeavesExtraUnits(t *testing.T) {
	var c Cart
	c.Add(line("a", 500, 1))
	c.Add(line("b", 1000, 1))
	// one more unit of a added after checkout began
	c.Add(line("a", 500, 1))

	c.Deduct([]Line{line("a", 500, 1), line("b", 1000, 1), line("zzz", 1, 1)})
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "a", c.Lines[0].ItemID)
	assert.Equal(t, 1, c.Lines[0].Quantity)
}

func TestCart_UpdateQuantityIsNotClamped(t *testing.T) {
	var c Cart
	c.Add(line("a", 500, 2))
	assert.True(t, c.UpdateQuantity("a", 0))
	assert.Equal(t, 0, c.Lines[0].Quantity)
	assert.False(t, c.UpdateQuantity("missing", 4))
}

func TestInMemoryRepository_PruneIdle(t *testing.T) {
	repo := NewInMemoryRepository()
	base := mustTime(t, "2026-01-01T10:00:00Z")
	old := repo.Create(base)
	fresh := repo.Create(base.Add(2 * hour))

	assert.Equal(t, 1, repo.PruneIdle(base.Add(hour)))
	_, err := repo.Get(old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Get(fresh.ID)
	assert.NoError(t, err)
}
