// Package storage provides the durable key/value stores and cookie jars the
// attribution store runs against.
package storage

import (
	"context"
	"sync"
)

// MemoryDurableStore is a map-backed durable store. Set FailWith to make every
// operation return that error.
type MemoryDurableStore struct {
	mu       sync.Mutex
	items    map[string]string
	FailWith error
}

// NewMemoryDurableStore creates an empty store.
func NewMemoryDurableStore() *MemoryDurableStore {
	return &MemoryDurableStore{items: make(map[string]string)}
}

func (m *MemoryDurableStore) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return "", false, m.FailWith
	}
	value, ok := m.items[key]
	return value, ok, nil
}

func (m *MemoryDurableStore) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.items[key] = value
	return nil
}

func (m *MemoryDurableStore) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	delete(m.items, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryDurableStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
