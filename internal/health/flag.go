package health

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Flag is an observable boolean cell for session health.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Healthy never takes a lock.
type Flag struct {
	healthy     atomic.Bool
	transitions atomic.Uint64

	// changed is closed and replaced on every transition.
	mu      sync.Mutex
	changed chan struct{}
}

// New returns a Flag in the unhealthy state.
func New() *Flag {
	return &Flag{
		changed: make(chan struct{}),
	}
}

// Set stores the health value and reports whether it changed.
// Waiters are released only on an actual transition.
func (f *Flag) Set(healthy bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.healthy.Load() == healthy {
		return false
	}
	f.healthy.Store(healthy)
	f.transitions.Add(1)

	close(f.changed)
	f.changed = make(chan struct{})
	return true
}

// Healthy returns the current value.
func (f *Flag) Healthy() bool {
	return f.healthy.Load()
}

// Changed returns a channel that is closed at the next transition.
//
// Take the channel before reading Healthy so a transition between the two
// calls is never missed:
//
//	ch := flag.Changed()
//	if !flag.Healthy() {
//	    <-ch
//	}
func (f *Flag) Changed() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changed
}

// WaitHealthy blocks until the flag is healthy or ctx is done.
func (f *Flag) WaitHealthy(ctx context.Context) error {
	for {
		ch := f.Changed()
		if f.Healthy() {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("waiting for session health: %w", ctx.Err())
		}
	}
}

// Transitions returns the number of value changes since creation.
func (f *Flag) Transitions() uint64 {
	return f.transitions.Load()
}

// String implements fmt.Stringer.
func (f *Flag) String() string {
	if f.Healthy() {
		return "healthy"
	}
	return "unhealthy"
}
