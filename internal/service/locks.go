package service

import "sync"

// productLocks is a lock table keyed by product id. recordSale holds the
// product's lock across the read-validate-write sequence so two concurrent
// sales against the same product cannot both pass the stock check. Locks for
// different products are independent, so unrelated sales proceed in parallel.
//
// Entries are never removed; the table is bounded by the catalog size.
type productLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newProductLocks() *productLocks {
	return &productLocks{locks: make(map[string]*sync.Mutex)}
}

func (p *productLocks) get(productID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[productID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[productID] = lock
	}
	return lock
}
