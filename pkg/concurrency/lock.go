// Package concurrency provides per-key locking.
package concurrency

import (
	"sync"
)

type refMutex struct {
	sync.Mutex
	refs int
}

// MutexManager hands out one mutex per key. Entries are dropped once no
// goroutine holds or waits for them, so keys drawn from an unbounded space
// (session ids) do not accumulate.
type MutexManager struct {
	mutexes map[string]*refMutex
	mapMu   sync.Mutex
}

func NewMutexManager() *MutexManager {
	return &MutexManager{
		mutexes: make(map[string]*refMutex),
	}
}

func (m *MutexManager) Lock(key string) {
	m.mapMu.Lock()
	mu, exists := m.mutexes[key]
	if !exists {
		mu = &refMutex{}
		m.mutexes[key] = mu
	}
	mu.refs++
	m.mapMu.Unlock()

	mu.Lock()
}

func (m *MutexManager) Unlock(key string) {
	m.mapMu.Lock()
	mu, exists := m.mutexes[key]
	if !exists {
		m.mapMu.Unlock()
		return
	}
	mu.refs--
	if mu.refs == 0 {
		delete(m.mutexes, key)
	}
	m.mapMu.Unlock()

	mu.Unlock()
}

// Len returns the number of keys currently held or awaited
func (m *MutexManager) Len() int {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	return len(m.mutexes)
}
