package store

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu     sync.Mutex
	claims map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{claims: make(map[string]string)}
}

func (m *MemoryStore) Claim(_ context.Context, txHash, binding string) error {
	key := normalize(txHash)

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.claims[key]; ok {
		if existing != binding {
			return ErrProofReused
		}
		return nil
	}
	m.claims[key] = binding
	return nil
}

func (m *MemoryStore) Close() error { return nil }
