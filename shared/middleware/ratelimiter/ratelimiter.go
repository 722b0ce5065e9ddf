package ratelimiter

import (
	"sync"
	"time"
)

// bucket is a token bucket for a single identity
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// UserRateLimiter keeps one token bucket per identity.
// Buckets idle longer than expiration are reset on next use and swept in the background.
type UserRateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	rate       float64 // tokens per second
	capacity   float64
	expiration time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
	now        func() time.Time
}

func New(rate, capacity float64, expiration time.Duration) *UserRateLimiter {
	rl := &UserRateLimiter{
		buckets:    make(map[string]*bucket),
		rate:       rate,
		capacity:   capacity,
		expiration: expiration,
		stop:       make(chan struct{}),
		now:        time.Now,
	}
	go rl.sweep()
	return rl
}

func (rl *UserRateLimiter) sweep() {
	ticker := time.NewTicker(rl.expiration)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for id, b := range rl.buckets {
				if now.Sub(b.lastSeen) > rl.expiration {
					delete(rl.buckets, id)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// Allow takes a token from the identity's bucket
func (rl *UserRateLimiter) Allow(identity string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[identity]
	if !ok || now.Sub(b.lastSeen) > rl.expiration {
		b = &bucket{tokens: rl.capacity, lastSeen: now}
		rl.buckets[identity] = b
	}

	b.tokens = min(rl.capacity, b.tokens+now.Sub(b.lastSeen).Seconds()*rl.rate)
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

func (rl *UserRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func OnceInMinute() *UserRateLimiter { return New(1.0/60, 1, time.Hour) }
func OnceInSecond() *UserRateLimiter { return New(1, 1, time.Hour) }
func Rps10() *UserRateLimiter        { return New(10, 10, time.Hour) }
func Rps100() *UserRateLimiter       { return New(100, 100, time.Hour) }
