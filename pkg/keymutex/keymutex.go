// Package keymutex provides per-key mutual exclusion.
package keymutex

import "sync"

// KeyMutex serializes operations that share a key, such as the balance
// check-and-debit window for a single account. Entries are reference-counted
// and dropped once the last holder releases, so the map does not grow with
// the number of distinct keys seen.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty KeyMutex
func New() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key, creating it on first use
func (km *KeyMutex) Lock(key string) {
	km.mu.Lock()
	e, ok := km.locks[key]
	if !ok {
		e = &entry{}
		km.locks[key] = e
	}
	e.refs++
	km.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. Unlocking a key that is not held is a
// programming error and panics, matching sync.Mutex semantics.
func (km *KeyMutex) Unlock(key string) {
	km.mu.Lock()
	e, ok := km.locks[key]
	if !ok {
		km.mu.Unlock()
		panic("keymutex: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(km.locks, key)
	}
	km.mu.Unlock()

	e.mu.Unlock()
}
