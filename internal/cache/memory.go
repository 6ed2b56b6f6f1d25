package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Memory is the in-process cache used by tests and single-node deployments.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemory returns an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

// WithClock overrides the clock, for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	stored, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.now().After(stored.expiresAt) {
		return Entry{}, false, nil
	}
	return stored.entry, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	now := m.now()
	m.mu.Lock()
	m.entries[key] = memoryEntry{
		entry:     Entry{Data: data, CreatedAt: now},
		expiresAt: now.Add(ttl),
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return nil
}
