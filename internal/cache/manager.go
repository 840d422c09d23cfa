package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Manager is a bounded in-memory cache with per-entry TTL and LRU eviction.
// Expiry is checked lazily on read; there is no background sweep.
type Manager[V any] struct {
	cache      *lru.Cache[string, *Entry[V]]
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

// NewManager creates a new cache Manager
func NewManager[V any](opts Options) (*Manager[V], error) {
	if opts.MaxSize == 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.DefaultTTL == 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.MaxSize < 0 {
		return nil, fmt.Errorf("cache max size must be positive, got %d", opts.MaxSize)
	}
	if opts.DefaultTTL < 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", opts.DefaultTTL)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c, err := lru.New[string, *Entry[V]](opts.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}

	return &Manager[V]{
		cache:      c,
		maxSize:    opts.MaxSize,
		defaultTTL: opts.DefaultTTL,
		now:        opts.Now,
	}, nil
}

// Get retrieves a fresh value and promotes it to most recently used.
// A stale entry is removed and reported as absent.
func (m *Manager[V]) Get(key string) (V, bool) {
	var zero V

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.cache.Get(key)
	if !ok {
		m.misses++
		return zero, false
	}

	if entry.expired(m.now()) {
		m.cache.Remove(key)
		m.misses++
		return zero, false
	}

	entry.HitCount++
	m.hits++
	return entry.Data, true
}

// Set stores a value. A non-positive ttl means the default TTL.
// Inserting a new key at capacity evicts the least recently used entry.
func (m *Manager[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	entry := &Entry[V]{
		Key:      key,
		Data:     value,
		StoredAt: m.now(),
		TTL:      ttl,
	}

	m.mu.Lock()
	m.cache.Add(key, entry)
	m.mu.Unlock()
}

// Delete removes a single key
func (m *Manager[V]) Delete(key string) {
	m.mu.Lock()
	m.cache.Remove(key)
	m.mu.Unlock()
}

// Clear removes every entry and resets the hit counters
func (m *Manager[V]) Clear() {
	m.mu.Lock()
	m.cache.Purge()
	m.hits = 0
	m.misses = 0
	m.mu.Unlock()
}

// Len returns the number of stored entries, including stale ones not yet read
func (m *Manager[V]) Len() int {
	return m.cache.Len()
}

// Stats returns a diagnostic snapshot without touching recency
func (m *Manager[V]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	keys := m.cache.Keys()
	entries := make([]EntryStats, 0, len(keys))
	for _, key := range keys {
		entry, ok := m.cache.Peek(key)
		if !ok {
			continue
		}
		entries = append(entries, EntryStats{
			Key:      key,
			Age:      now.Sub(entry.StoredAt),
			TTL:      entry.TTL,
			HitCount: entry.HitCount,
			Expired:  entry.expired(now),
		})
	}

	var hitRate float64
	if total := m.hits + m.misses; total > 0 {
		hitRate = float64(m.hits) / float64(total)
	}

	return Stats{
		Size:    len(entries),
		MaxSize: m.maxSize,
		Hits:    m.hits,
		Misses:  m.misses,
		HitRate: hitRate,
		Entries: entries,
	}
}
