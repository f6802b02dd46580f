package ratelimiter

import (
	"net/http/httptest"
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
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
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

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	clock := newFakeClock()
	cache := NewInMemory()
	t.Cleanup(func() { cache.Close() })

	rl := New(Options{
		MaxRatePerSecond: 10,
		MaxBurst:         3,
		Cache:            cache,
		CacheTTL:         time.Hour,
		Now:              clock.Now,
	})

	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow("client"), "request %d", i)
	}
	assert.False(t, rl.Allow("client"))
	assert.True(t, rl.Allow("other"), "buckets are per source")

	// 10/s is one token per 100ms.
	clock.Advance(100 * time.Millisecond)
	assert.True(t, rl.Allow("client"))
	assert.False(t, rl.Allow("client"))

	clock.Advance(time.Hour)
	assert.Equal(t, 3, rl.Remaining("client"))
}

func TestRateLimiter_PartialRefillCarriesOver(t *testing.T) {
	clock := newFakeClock()
	cache := NewInMemory()
	t.Cleanup(func() { cache.Close() })

	rl := New(Options{
		MaxRatePerSecond: 10,
		MaxBurst:         1,
		Cache:            cache,
		CacheTTL:         time.Hour,
		Now:              clock.Now,
	})

	require.True(t, rl.Allow("client"))

	// Two half-token steps must add up to one token.
	clock.Advance(50 * time.Millisecond)
	assert.False(t, rl.Allow("client"))
	clock.Advance(50 * time.Millisecond)
	assert.True(t, rl.Allow("client"))
}

func TestRateLimiter_GetSourceKey(t *testing.T) {
	rl := New(Options{MaxRatePerSecond: 1, SourceHeaderKey: "X-Forwarded-For"})
	t.Cleanup(func() { rl.Close() })

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	assert.Equal(t, "10.0.0.7", rl.GetSourceKey(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", rl.GetSourceKey(req))
}

func TestFixedWindowRateLimiter(t *testing.T) {
	clock := newFakeClock()
	rl := NewFixedWindowRateLimiter(2, time.Second)
	rl.now = clock.Now
	t.Cleanup(rl.Close)

	ok, _ := rl.Allow("conn-1")
	assert.True(t, ok)
	ok, _ = rl.Allow("conn-1")
	assert.True(t, ok)

	ok, wait := rl.Allow("conn-1")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	clock.Advance(time.Second)
	ok, _ = rl.Allow("conn-1")
	assert.True(t, ok)

	rl.Allow("conn-1")
	rl.Forget("conn-1")
	ok, _ = rl.Allow("conn-1")
	assert.True(t, ok, "forgotten keys start a fresh window")
}
