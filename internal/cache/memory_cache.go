package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryBlobCache реализует BlobCache в памяти процесса.
// Используется, когда Redis не настроен.
type MemoryBlobCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
	stats   stats
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

func NewMemoryBlobCache() *MemoryBlobCache {
	return &MemoryBlobCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryBlobCache) Get(ctx context.Context, key string) ([]byte, error) {
	defer m.stats.recordLatency(time.Now())

	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || (!e.expires.IsZero() && m.now().After(e.expires)) {
		m.stats.miss()
		return nil, ErrCacheMiss
	}
	m.stats.hit()
	return append([]byte(nil), e.value...), nil
}

func (m *MemoryBlobCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	defer m.stats.recordLatency(time.Now())

	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryBlobCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBlobCache) Close() error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBlobCache) GetMetrics() CacheMetrics {
	return m.stats.snapshot()
}
