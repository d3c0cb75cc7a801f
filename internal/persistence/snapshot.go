package persistence

import (
	"context"
	"errors"
	"sync"
)

// ErrSnapshotNotFound is returned by Load when nothing was saved under a key.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore persists a whole serialized collection under a key.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Ping(ctx context.Context) error
}

// MemorySnapshots keeps snapshots in process memory.
type MemorySnapshots struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemorySnapshots returns an empty in-memory store.
func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{data: make(map[string][]byte)}
}

// Load returns a copy of the bytes saved under key.
func (m *MemorySnapshots) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[key]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return append([]byte(nil), data...), nil
}

// Save replaces the bytes under key.
func (m *MemorySnapshots) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

// Ping always succeeds.
func (m *MemorySnapshots) Ping(context.Context) error {
	return nil
}
