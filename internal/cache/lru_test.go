package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePutGetRoundTrip(t *testing.T) {
	c := New(10, time.Minute)
	c.Put("k1", []byte("v1"))

	v, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, time.Minute)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Get("a") // a is now most-recently-used
	c.Put("c", []byte("3"))

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted as least-recently-used")

	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCacheExpiresByTTL(t *testing.T) {
	c := New(10, time.Millisecond)
	c.Put("k", []byte("v"))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCacheCleanExpiredRemovesOnlyStale(t *testing.T) {
	c := New(10, 5*time.Millisecond)
	c.Put("stale", []byte("v"))
	time.Sleep(10 * time.Millisecond)
	c.Put("fresh", []byte("v2"))

	removed := c.CleanExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
}

func TestCacheHitRatio(t *testing.T) {
	c := New(10, time.Minute)
	c.Put("k", []byte("v"))
	c.Get("k")
	c.Get("missing")

	assert.InDelta(t, 0.5, c.HitRatio(), 0.001)
}
