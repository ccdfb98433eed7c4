package engine

import (
	"context"
	"sync"
)

// lockTable enforces the engine's per-order-id serialization: at most one
// outstanding transition per order at any time. It is a map of
// capacity-1 channels used as mutexes, rather than a single global
// mutex, so unrelated orders never contend with each other.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]chan struct{})}
}

func (t *lockTable) chanFor(orderID string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.locks[orderID]
	if !ok {
		ch = make(chan struct{}, 1)
		t.locks[orderID] = ch
	}
	return ch
}

// Acquire blocks until orderID's lock is held or ctx is cancelled,
// returning a release function. Two ClaimReady events (or any two
// events) for the same order are serialized here, not reordered.
func (t *lockTable) Acquire(ctx context.Context, orderID string) (func(), error) {
	ch := t.chanFor(orderID)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
