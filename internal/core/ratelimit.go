package core

import (
	"sync"
	"time"
)

// rateLimiter allows limit commands per fixed one-minute window.
type rateLimiter struct {
	limit   int
	window  time.Duration
	now     func() time.Time
	mu      sync.Mutex
	counter int
	reset   time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		return &rateLimiter{limit: 0}
	}
	return &rateLimiter{
		limit:  limit,
		window: time.Minute,
		now:    time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !now.Before(r.reset) {
		r.counter = 0
		r.reset = now.Add(r.window)
	}
	r.counter++
	return r.counter <= r.limit
}
