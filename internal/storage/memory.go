package storage

import (
	"context"
	"sync"
)

// Memory is an in-process Store for tests and throwaway runs.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func (m *Memory) Save(_ context.Context, key string, blob []byte) error {
	stored := make([]byte, len(blob))
	copy(stored, blob)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = stored
	return nil
}

func (m *Memory) Close() error {
	return nil
}
