package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process KV used by tests and ephemeral CLI runs.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[Scope]map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{values: make(map[Scope]map[string]string)}
}

// GetValue returns the value for key.
func (m *MemoryStore) GetValue(_ context.Context, scope Scope, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[scope][key]
	return v, ok, nil
}

// SetValue stores value under key.
func (m *MemoryStore) SetValue(_ context.Context, scope Scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[scope]; !ok {
		m.values[scope] = make(map[string]string)
	}
	m.values[scope][key] = value
	return nil
}

// DeleteValue removes key.
func (m *MemoryStore) DeleteValue(_ context.Context, scope Scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if values, ok := m.values[scope]; ok {
		delete(values, key)
		if len(values) == 0 {
			delete(m.values, scope)
		}
	}
	return nil
}
