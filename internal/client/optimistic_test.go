package client

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimistic_Commit(t *testing.T) {
	o := NewOptimistic(1)
	assert.Equal(t, Idle, o.State())

	err := o.Apply(2, func() (int, error) {
		assert.Equal(t, 2, o.Get(), "value is visible before the commit returns")
		assert.Equal(t, Pending, o.State())
		return 3, nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, o.Get())
	assert.Equal(t, Committed, o.State())
}

func TestOptimistic_Rollback(t *testing.T) {
	o := NewOptimistic("a")
	boom := errors.New("boom")

	err := o.Apply("b", func() (string, error) { return "", boom }, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "a", o.Get())
	assert.Equal(t, RolledBack, o.State())
}

func TestOptimistic_RollbackResyncs(t *testing.T) {
	o := NewOptimistic("a")

	err := o.Apply("b",
		func() (string, error) { return "", errors.New("boom") },
		func() (string, error) { return "server", nil },
	)
	assert.Error(t, err)
	assert.Equal(t, "server", o.Get())

	// a failing resync keeps the pre-mutation value
	err = o.Apply("c",
		func() (string, error) { return "", errors.New("boom") },
		func() (string, error) { return "", errors.New("offline") },
	)
	assert.Error(t, err)
	assert.Equal(t, "server", o.Get())
}

func TestOptimistic_RejectsConcurrentMutation(t *testing.T) {
	o := NewOptimistic(0)

	err := o.Apply(1, func() (int, error) {
		inner := o.Apply(2, func() (int, error) { return 2, nil }, nil)
		assert.ErrorIs(t, inner, ErrMutationInFlight)
		return 1, nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, o.Get())
}

func TestMutationStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "committed", Committed.String())
	assert.Equal(t, "rolled back", RolledBack.String())
}
