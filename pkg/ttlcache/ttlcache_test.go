package ttlcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time deterministically.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(maxEntries int, expiry time.Duration) (*Cache[string, int], *fakeClock) {
	c := New[string, int](maxEntries, expiry)
	clk := &fakeClock{t: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clk.now
	return c, clk
}

func TestCache_PutGet(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)

	c.Put("person", 1)
	v, ok := c.Get("person")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_WriteExpiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)

	c.Put("person", 1)
	clk.advance(59 * time.Second)
	_, ok := c.Get("person")
	assert.True(t, ok)

	clk.advance(2 * time.Second)
	_, ok = c.Get("person")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_RewriteResetsExpiry(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)

	c.Put("person", 1)
	clk.advance(50 * time.Second)
	c.Put("person", 2)
	clk.advance(30 * time.Second)

	v, ok := c.Get("person")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestCache_EvictsOldestWrite(t *testing.T) {
	c, _ := newTestCache(2, 0)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest write should have been evicted")
	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCache_Snapshot(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)

	c.Put("a", 1)
	c.Put("b", 2)
	clk.advance(2 * time.Minute)
	c.Put("c", 3)

	snap := c.Snapshot()
	assert.Equal(t, map[string]int{"c": 3}, snap)
}

func TestCache_DeleteAndClear(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Delete("a")
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("b")
	assert.False(t, ok)
}

func TestCache_ZeroExpiryNeverExpires(t *testing.T) {
	c, clk := newTestCache(10, 0)

	c.Put("a", 1)
	clk.advance(24 * time.Hour)
	_, ok := c.Get("a")
	assert.True(t, ok)
}
