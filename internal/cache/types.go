package cache

import "time"

// Entry is a cached value with the time it was stored.
// An entry is fresh while now < StoredAt + TTL.
type Entry[V any] struct {
	Key      string
	Data     V
	StoredAt time.Time
	TTL      time.Duration
	HitCount uint64
}

// expired reports whether the entry is stale at the given time
func (e *Entry[V]) expired(now time.Time) bool {
	return !now.Before(e.StoredAt.Add(e.TTL))
}

// Stats is a diagnostic snapshot of the cache
type Stats struct {
	Size    int          `json:"size"`
	MaxSize int          `json:"maxSize"`
	Hits    uint64       `json:"hits"`
	Misses  uint64       `json:"misses"`
	HitRate float64      `json:"hitRate"`
	Entries []EntryStats `json:"entries"`
}

// EntryStats describes a single entry, ordered least to most recently used
type EntryStats struct {
	Key      string        `json:"key"`
	Age      time.Duration `json:"age"`
	TTL      time.Duration `json:"ttl"`
	HitCount uint64        `json:"hitCount"`
	Expired  bool          `json:"expired"`
}

// Options configures a Manager
type Options struct {
	MaxSize    int
	DefaultTTL time.Duration
	// Now overrides the clock, used by tests
	Now func() time.Time
}

// Default values
const (
	DefaultMaxSize = 1000
	DefaultTTL     = 30 * time.Second
)
