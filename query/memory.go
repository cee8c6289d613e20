package query

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	data []byte
	at   time.Time
}

// MemoryBackend keeps entries in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memEntry)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return e.data, e.at, true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, data []byte, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memEntry{data: data, at: at}
	return nil
}

func (m *MemoryBackend) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prefix == "" {
		clear(m.entries)
		return nil
	}
	for k := range m.entries {
		if k == prefix || strings.HasPrefix(k, prefix+"/") {
			delete(m.entries, k)
		}
	}
	return nil
}

// Len returns the number of stored entries.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryBackend) Close() error { return nil }
