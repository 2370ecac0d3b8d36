package order

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPrepared struct {
	*InMemoryRepository
}

func (failingPrepared) SetPrepared(context.Context, string, bool) error {
	return errors.New("connection reset")
}

func TestPreparedToggle_ExecuteAndUndo(t *testing.T) {
	svc := NewService(NewInMemoryRepository())
	ctx := context.Background()
	_, _, err := svc.CreateOrder(ctx, sampleOrder("t1"))
	require.NoError(t, err)

	cmd := &PreparedToggle{OrderID: "SSt1", Prepared: true}
	o, err := cmd.Execute(ctx, svc)
	require.NoError(t, err)
	assert.True(t, o.Prepared)
	assert.False(t, cmd.Previous())

	o, err = cmd.Undo(ctx, svc)
	require.NoError(t, err)
	assert.False(t, o.Prepared)
}

func TestPreparedToggle_FailureReturnsPreviousState(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	_, _, err := NewService(repo).CreateOrder(ctx, sampleOrder("t2"))
	require.NoError(t, err)

	svc := NewService(failingPrepared{repo})
	cmd := &PreparedToggle{OrderID: "SSt2", Prepared: true}
	o, err := cmd.Execute(ctx, svc)
	require.Error(t, err)
	assert.False(t, o.Prepared)
	assert.Equal(t, "SSt2", o.OrderID)
}
