// Package cache is the proxy's key/value store with per-entry expiry.
// Values are opaque byte slices; callers own the encoding.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long a normalized indicator result stays fresh.
const DefaultTTL = 5 * time.Minute

// Store is a key/value store with time-based expiry.
type Store interface {
	// Get returns the value for key, or ok=false if it was never set or has
	// expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Put overwrites key and restarts its expiry at now+ttl.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// entry stores one cached value with its expiry.
type entry struct {
	expiresAt time.Time
	value     []byte
}

// Memory is a process-local Store. Expired entries are dropped lazily when
// read; there is no capacity bound and no background sweeper.
type Memory struct {
	now func() time.Time

	mu    sync.RWMutex
	items map[string]entry
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{now: time.Now, items: make(map[string]entry)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	now := m.now()

	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !now.After(e.expiresAt) {
		return e.value, true, nil
	}

	// Expired: drop it unless a concurrent Put already replaced it.
	m.mu.Lock()
	if cur, ok := m.items[key]; ok && now.After(cur.expiresAt) {
		delete(m.items, key)
	}
	m.mu.Unlock()
	return nil, false, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)

	m.mu.Lock()
	m.items[key] = entry{expiresAt: m.now().Add(ttl), value: v}
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included until
// they are next read.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
