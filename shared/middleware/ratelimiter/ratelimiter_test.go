package ratelimiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(rate, capacity float64, expiration time.Duration) (*UserRateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Now()}
	rl := New(rate, capacity, expiration)
	rl.now = clock.now
	return rl, clock
}

func TestUserRateLimiter_Allow(t *testing.T) {
	t.Run("allows up to capacity then denies", func(t *testing.T) {
		rl, _ := newTestLimiter(1, 3, time.Hour)
		defer rl.Stop()

		assert.True(t, rl.Allow("u"))
		assert.True(t, rl.Allow("u"))
		assert.True(t, rl.Allow("u"))
		assert.False(t, rl.Allow("u"))
	})

	t.Run("refills tokens over time", func(t *testing.T) {
		rl, clock := newTestLimiter(1, 1, time.Hour)
		defer rl.Stop()

		assert.True(t, rl.Allow("u"))
		assert.False(t, rl.Allow("u"))
		clock.advance(1100 * time.Millisecond)
		assert.True(t, rl.Allow("u"))
	})

	t.Run("does not exceed capacity", func(t *testing.T) {
		rl, clock := newTestLimiter(1, 2, time.Hour)
		defer rl.Stop()

		assert.True(t, rl.Allow("u"))
		clock.advance(time.Minute)
		assert.True(t, rl.Allow("u"))
		assert.True(t, rl.Allow("u"))
		assert.False(t, rl.Allow("u"))
	})

	t.Run("identities are independent", func(t *testing.T) {
		rl, _ := newTestLimiter(1, 1, time.Hour)
		defer rl.Stop()

		assert.True(t, rl.Allow("a"))
		assert.False(t, rl.Allow("a"))
		assert.True(t, rl.Allow("b"))
	})

	t.Run("expired bucket is reset", func(t *testing.T) {
		rl, clock := newTestLimiter(1.0/60, 1, time.Second)
		defer rl.Stop()

		assert.True(t, rl.Allow("u"))
		assert.False(t, rl.Allow("u"))
		clock.advance(2 * time.Second)
		assert.True(t, rl.Allow("u"))
	})
}

func TestUserRateLimiter_Concurrent(t *testing.T) {
	rl := New(0.001, 50, time.Hour)
	defer rl.Stop()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("u") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestUserRateLimiter_StopTwice(t *testing.T) {
	rl := New(1, 1, time.Hour)
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
