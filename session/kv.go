package session

import (
	"context"
	"errors"
	"sync"
)

// ErrStorageUnavailable wraps backend failures (network, disk, encoding).
var ErrStorageUnavailable = errors.New("session storage unavailable")

// KV is a string-keyed durable store. Get reports ok=false for a missing key
// without returning an error.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// PairSetter is implemented by backends that can write several entries as one
// unit. [Persistence] prefers it over sequential Set calls.
type PairSetter interface {
	SetMany(ctx context.Context, entries map[string]string) error
}

// MemoryKV is a process-local [KV]. The zero value is ready to use.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKV returns an empty [MemoryKV].
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func (m *MemoryKV) SetMany(_ context.Context, entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.values == nil {
		m.values = make(map[string]string, len(entries))
	}
	for k, v := range entries {
		m.values[k] = v
	}
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Len returns the number of stored entries.
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
