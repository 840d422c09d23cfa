package cache

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type balance struct {
	Amount string `json:"amount"`
}

func newTestManager(t *testing.T, size int, clock *fakeClock) *Manager[balance] {
	t.Helper()
	m, err := NewManager[balance](Options{MaxSize: size, DefaultTTL: 30 * time.Second, Now: clock.Now})
	require.NoError(t, err)
	return m
}

func TestManager_Freshness(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, 10, clock)

	m.Set("get_balance:sei1abc", balance{Amount: "100"}, 10*time.Second)

	clock.Advance(5 * time.Second)
	got, ok := m.Get("get_balance:sei1abc")
	require.True(t, ok)
	assert.Equal(t, balance{Amount: "100"}, got)

	clock.Advance(10 * time.Second)
	_, ok = m.Get("get_balance:sei1abc")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len(), "stale entry is removed on read")
}

func TestManager_ExpiresExactlyAtTTL(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, 10, clock)

	m.Set("k", balance{Amount: "1"}, time.Second)

	clock.Advance(time.Second - time.Nanosecond)
	_, ok := m.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Nanosecond)
	_, ok = m.Get("k")
	assert.False(t, ok)
}

func TestManager_DefaultTTL(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, 10, clock)

	m.Set("k", balance{Amount: "1"}, 0)

	clock.Advance(29 * time.Second)
	_, ok := m.Get("k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = m.Get("k")
	assert.False(t, ok)
}

func TestManager_LRUEviction(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, 3, clock)

	m.Set("a", balance{Amount: "1"}, 0)
	m.Set("b", balance{Amount: "2"}, 0)
	m.Set("c", balance{Amount: "3"}, 0)

	// Promote "a"; "b" becomes least recently used
	_, ok := m.Get("a")
	require.True(t, ok)

	m.Set("d", balance{Amount: "4"}, 0)

	_, ok = m.Get("b")
	assert.False(t, ok, "least recently used key is evicted")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := m.Get(key)
		assert.True(t, ok, key)
	}
	assert.Equal(t, 3, m.Len())
}

func TestManager_ReplaceDoesNotEvict(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, 2, clock)

	m.Set("a", balance{Amount: "1"}, 0)
	m.Set("b", balance{Amount: "2"}, 0)
	m.Set("a", balance{Amount: "10"}, 0)

	got, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "10", got.Amount)
	_, ok = m.Get("b")
	assert.True(t, ok)
}

func TestManager_DeleteClearStats(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(t, 10, clock)

	m.Set("a", balance{Amount: "1"}, 0)
	m.Set("b", balance{Amount: "2"}, 0)

	m.Get("a")
	m.Get("a")
	m.Get("missing")

	stats := m.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 1e-9)
	require.Len(t, stats.Entries, 2)
	assert.Equal(t, "b", stats.Entries[0].Key)
	assert.Equal(t, uint64(2), stats.Entries[1].HitCount)

	m.Delete("a")
	_, ok := m.Get("a")
	assert.False(t, ok)

	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0.0, m.Stats().HitRate)
}

func TestNewManager_Invalid(t *testing.T) {
	_, err := NewManager[json.RawMessage](Options{MaxSize: -1})
	require.Error(t, err)
	_, err = NewManager[json.RawMessage](Options{DefaultTTL: -time.Second})
	require.Error(t, err)
}
