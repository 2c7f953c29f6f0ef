package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(size int, ttl time.Duration) (*LRUCache[string, int], *time.Time) {
	now := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string, int](size, ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLRUCache_GetSet(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("a", 2)
	v, _ = c.Get("a")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a") // b is now the oldest
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestLRUCache_Expiry(t *testing.T) {
	c, now := newTestCache(4, time.Second)

	c.Set("a", 1)
	c.Set("b", 2)
	*now = now.Add(2 * time.Second)
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok, "expired entries must not be returned")

	assert.Equal(t, 1, c.CleanExpired(), "only b is left to sweep")
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_Purge(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	assert.Equal(t, 3, c.Size())

	c.Purge()
	assert.Zero(t, c.Size())
	_, ok := c.Get("b")
	assert.False(t, ok)

	// usable after purge
	c.Set("d", 4)
	v, ok := c.Get("d")
	require.True(t, ok)
	assert.Equal(t, 4, v)
}

func TestNewLRUCache_MinimumSize(t *testing.T) {
	c := NewLRUCache[int, string](0, time.Minute)
	c.Set(1, "x")
	c.Set(2, "y")
	assert.Equal(t, 1, c.Size())
}

func TestManager_cleanNowAndStop(t *testing.T) {
	c, now := newTestCache(4, time.Second)
	c.Set("a", 1)
	*now = now.Add(time.Hour)

	m := NewManager(nil)
	m.Register(c)
	assert.Equal(t, 1, m.cleanNow())

	m.StartCleanup(10 * time.Millisecond)
	m.StartCleanup(10 * time.Millisecond)
	m.Stop()
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without a running cleanup loop")
	}
}
