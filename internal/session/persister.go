package session

import (
	"context"
	"errors"
	"sync"
)

// Key names one independently clearable slot of persisted client state.
type Key string

const (
	KeyToken  Key = "token"
	KeyUser   Key = "user"
	KeyVendor Key = "vendor"
)

// AllKeys lists every persisted slot.
var AllKeys = []Key{KeyToken, KeyUser, KeyVendor}

// ErrNotPersisted indicates the slot holds no value.
var ErrNotPersisted = errors.New("no persisted value")

// Persister keeps session slots across process restarts.
type Persister interface {
	Get(ctx context.Context, key Key) ([]byte, error)
	Put(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, keys ...Key) error
}

// MemoryPersister keeps slots in process memory. It survives Store
// re-creation but not process restarts.
type MemoryPersister struct {
	mu    sync.Mutex
	slots map[Key][]byte
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{slots: make(map[Key][]byte)}
}

func (m *MemoryPersister) Get(_ context.Context, key Key) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.slots[key]
	if !ok {
		return nil, ErrNotPersisted
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryPersister) Put(_ context.Context, key Key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryPersister) Delete(_ context.Context, keys ...Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.slots, k)
	}
	return nil
}
