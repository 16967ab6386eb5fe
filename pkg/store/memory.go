package store

import (
	"context"
	"sync"
)

// MemoryStore keeps values in process memory. Used in tests and with
// --store memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	puts   map[string]int
	closed bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: map[string][]byte{},
		puts:   map[string]int{},
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, false, ErrStoreClosed
	}
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.values[key] = append([]byte(nil), value...)
	m.puts[key]++
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.values, key)
	return nil
}

// PutCount returns how many times key has been written.
func (m *MemoryStore) PutCount(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts[key]
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
