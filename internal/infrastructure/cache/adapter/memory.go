package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/Behappytocode/circle/internal/infrastructure/cache/port"
)

// MemCache is a process-local port.Cache for tests and single-node runs
// without redis.
type MemCache struct {
	mu      sync.Mutex
	entries map[string]memEntry
}

type memEntry struct {
	value   string
	expires time.Time // zero means no expiration
}

func NewMemCache() *MemCache {
	return &MemCache{entries: make(map[string]memEntry)}
}

var _ port.Cache = (*MemCache)(nil)

func (m *MemCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", port.ErrMiss
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(m.entries, key)
		return "", port.ErrMiss
	}
	return e.value, nil
}

func (m *MemCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	e := memEntry{value: value}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemCache) Del(ctx context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.entries[k]; ok {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *MemCache) Ping(ctx context.Context) error { return nil }

func (m *MemCache) Close() error { return nil }
