package kv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Store is the client storage collaborator.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// ValidBackends lists the accepted backend names.
var ValidBackends = []string{BackendSQLite, BackendBadger, BackendMemory}

// Open opens the named backend rooted at dir.
// The sqlite backend uses dir/client.db, badger uses dir/badger. dir is
// created if missing.
func Open(backend, dir string) (Store, error) {
	if backend != BackendMemory && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	switch backend {
	case "", BackendSQLite:
		return OpenSQLite(filepath.Join(dir, "client.db"))
	case BackendBadger:
		return OpenBadger(filepath.Join(dir, "badger"))
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q: must be one of %v", backend, ValidBackends)
	}
}

// Memory is an in-process Store. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	values map[string]string

	// FailWrites makes Set and Delete return ErrWriteFailed. Tests use it to
	// exercise the storage-failure path.
	FailWrites bool
}

// ErrWriteFailed is returned by Memory when FailWrites is set.
var ErrWriteFailed = errors.New("kv: write failed")

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrWriteFailed
	}
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrWriteFailed
	}
	delete(m.values, key)
	return nil
}

func (m *Memory) Close() error { return nil }

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
