package session

import (
	"context"
	"errors"
	"sync"
)

// ErrUnavailable is returned when a backend cannot be read or written.
var ErrUnavailable = errors.New("session store unavailable")

// KV is the persistence port: opaque string values under string keys.
//
// Put applies every entry of values as one batch; an empty value deletes its key.
// Delete does not fail for keys that do not exist.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Put(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// Watcher is implemented by backends that can report changes made by other
// processes. Watch blocks until ctx is done, calling onChange after each external
// modification.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// MemoryKV is a process-local [KV]. The zero value is ready to use.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV returns an empty in-memory backend.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Put(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		m.data = make(map[string]string, len(values))
	}
	for k, v := range values {
		if v == "" {
			delete(m.data, k)
			continue
		}
		m.data[k] = v
	}
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
