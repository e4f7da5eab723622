package submission

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// sellerLeases grants one lease per seller. A lease spans a record's
// chain entry from append until the authority's answer is settled, so no
// other record of the seller is chained on top of an entry that may still
// be compensated.
//
// Thread-safety: safe for concurrent use.
type sellerLeases struct {
	mu    sync.Mutex
	slots map[string]*semaphore.Weighted
}

func newSellerLeases() *sellerLeases {
	return &sellerLeases{slots: make(map[string]*semaphore.Weighted)}
}

// acquire blocks until the seller's lease is free or ctx ends. The
// returned func releases it.
func (l *sellerLeases) acquire(ctx context.Context, sellerID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[sellerID]
	if !ok {
		slot = semaphore.NewWeighted(1)
		l.slots[sellerID] = slot
	}
	l.mu.Unlock()

	if err := slot.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { slot.Release(1) }, nil
}
