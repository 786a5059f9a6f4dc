package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpires(t *testing.T) {
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	c := newTTLCache[string, int](func() time.Time { return now }, 10)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)

	v, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	c.Delete("b")
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestTTLCacheBoundsSize(t *testing.T) {
	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	c := newTTLCache[int, int](func() time.Time { return now }, 2)

	c.Set(1, 1, time.Second)
	c.Set(2, 2, time.Hour)
	now = now.Add(2 * time.Second)
	c.Set(3, 3, time.Hour)

	_, ok := c.Get(2)
	assert.True(t, ok)
	_, ok = c.Get(3)
	assert.True(t, ok)
	assert.Len(t, c.items, 2)
}

func TestCacheKeyNormalizes(t *testing.T) {
	assert.Equal(t, "7|abc", cacheKey(" 7 ", "", "ABC"))
}
