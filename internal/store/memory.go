package store

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

// sweepInterval bounds how often writes scan for expired entries.
const sweepInterval = time.Minute

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryKV is an in-process KV used when redis is not configured.
// Expired entries are dropped on read and by a sweep piggybacked on writes.
type MemoryKV struct {
	mu        sync.Mutex
	clock     clock.Clock
	entries   map[string]memoryEntry
	nextSweep time.Time
}

func NewMemoryKV(clk clock.Clock) *MemoryKV {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryKV{clock: clk, entries: make(map[string]memoryEntry)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.liveLocked(key)
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	m.entries[key] = m.entry(value, ttl)
	return nil
}

func (m *MemoryKV) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	if _, ok := m.liveLocked(key); ok {
		return false, nil
	}
	m.entries[key] = m.entry(value, ttl)
	return true, nil
}

func (m *MemoryKV) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryKV) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryKV) sweepLocked() {
	now := m.clock.Now()
	if now.Before(m.nextSweep) {
		return
	}
	m.nextSweep = now.Add(sweepInterval)
	for key, e := range m.entries {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}

func (m *MemoryKV) entry(value string, ttl time.Duration) memoryEntry {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.clock.Now().Add(ttl)
	}
	return e
}

func (m *MemoryKV) liveLocked(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !m.clock.Now().Before(e.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}
