// Package storage provides in-memory cache storage.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and single-process runs

package storage

import (
	"context"
	"sync"
	"time"
)

type memoryKey struct {
	namespace string
	key       string
}

// MemoryBackend implements Backend using an in-memory map.
// Data is lost when process terminates.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[memoryKey]Entry
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[memoryKey]Entry),
	}
}

// Get returns a copy of the stored entry.
func (m *MemoryBackend) Get(ctx context.Context, namespace, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[memoryKey{namespace, key}]
	if !ok {
		return nil, nil
	}

	// Return a copy to avoid external mutations
	copied := entry.clone()
	return &copied, nil
}

// Put stores a copy of the entry.
func (m *MemoryBackend) Put(ctx context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[memoryKey{entry.Namespace, entry.Key}] = entry.clone()
	return nil
}

// Delete removes an entry.
func (m *MemoryBackend) Delete(ctx context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, memoryKey{namespace, key})
	return nil
}

// DeleteNamespace removes all entries in a namespace.
func (m *MemoryBackend) DeleteNamespace(ctx context.Context, namespace string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k := range m.entries {
		if k.namespace == namespace {
			delete(m.entries, k)
			removed++
		}
	}
	return removed, nil
}

// DeleteExpired removes entries past their TTL.
func (m *MemoryBackend) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, entry := range m.entries {
		if entry.Expired(now) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Stats counts entries per namespace.
func (m *MemoryBackend) Stats(ctx context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for k := range m.entries {
		stats[k.namespace]++
	}
	return stats, nil
}

// Close is a no-op for the in-memory backend.
func (m *MemoryBackend) Close() error {
	return nil
}

// Verify MemoryBackend implements Backend
var _ Backend = (*MemoryBackend)(nil)
