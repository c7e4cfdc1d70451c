// internal/payments/locks.go
package payments

import "sync"

// orderLocks serializes concurrent verification attempts for the same gateway
// order id. Entries are reference-counted and removed when the last holder
// releases, so the map does not grow with order history.
type orderLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[string]*lockEntry)}
}

// acquire blocks until the lock for orderID is held and returns the release
// function.
func (ol *orderLocks) acquire(orderID string) func() {
	ol.mu.Lock()
	entry, ok := ol.locks[orderID]
	if !ok {
		entry = &lockEntry{}
		ol.locks[orderID] = entry
	}
	entry.refs++
	ol.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		ol.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(ol.locks, orderID)
		}
		ol.mu.Unlock()
	}
}
