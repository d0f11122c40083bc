package client

import (
	"errors"
	"sync"
)

// MutationState is the lifecycle of an optimistic mutation.
type MutationState int

const (
	Idle MutationState = iota
	Pending
	Committed
	RolledBack
)

func (s MutationState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	default:
		return "idle"
	}
}

// ErrMutationInFlight is returned when a mutation is applied while another one
// on the same resource has not settled.
var ErrMutationInFlight = errors.New("another change is still in progress")

// Optimistic holds a local value that is updated before the server confirms
// the change. A failed commit restores the previous value and, when a resync
// function is given, replaces it with fresh server state.
type Optimistic[T any] struct {
	mu    sync.Mutex
	value T
	state MutationState
}

// NewOptimistic wraps an initial value.
func NewOptimistic[T any](value T) *Optimistic[T] {
	return &Optimistic[T]{value: value}
}

// Get returns the current local value.
func (o *Optimistic[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.value
}

// State returns the state of the last mutation.
func (o *Optimistic[T]) State() MutationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Set replaces the value outside of any mutation, e.g. after a fetch.
func (o *Optimistic[T]) Set(value T) {
	o.mu.Lock()
	o.value = value
	o.mu.Unlock()
}

// Apply shows next locally, then runs commit. On success the value commit
// returns becomes authoritative. On failure the previous value is restored and
// resync, if set, is asked for the server's view. The commit error is returned
// either way.
func (o *Optimistic[T]) Apply(next T, commit func() (T, error), resync func() (T, error)) error {
	o.mu.Lock()
	if o.state == Pending {
		o.mu.Unlock()
		return ErrMutationInFlight
	}
	prev := o.value
	o.value = next
	o.state = Pending
	o.mu.Unlock()

	confirmed, err := commit()
	if err == nil {
		o.settle(confirmed, Committed)
		return nil
	}

	o.mu.Lock()
	o.value = prev
	o.mu.Unlock()

	if resync != nil {
		if fresh, rerr := resync(); rerr == nil {
			prev = fresh
		}
	}
	o.settle(prev, RolledBack)
	return err
}

func (o *Optimistic[T]) settle(value T, state MutationState) {
	o.mu.Lock()
	o.value = value
	o.state = state
	o.mu.Unlock()
}
