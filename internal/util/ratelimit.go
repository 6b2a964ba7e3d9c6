package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter spaces operations evenly at a fixed rate with a burst of one.
// Each Wait reserves the next free slot, so concurrent callers queue up in
// arrival order. A nil or zero-rate limiter never blocks.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time // earliest start of the next unreserved slot
	now      func() time.Time
}

// NewRateLimiter creates a RateLimiter that allows perMinute operations per
// minute. perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		return &RateLimiter{}
	}
	return &RateLimiter{
		interval: time.Minute / time.Duration(perMinute),
		now:      time.Now,
	}
}

// reserve claims the next slot and returns how long the caller must wait
// for it.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	if rl.next.Before(now) {
		rl.next = now
	}
	delay := rl.next.Sub(now)
	rl.next = rl.next.Add(rl.interval)
	return delay
}

// Wait blocks until the caller's slot arrives or ctx is done. A cancelled
// wait keeps its slot.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || rl.interval <= 0 {
		return ctx.Err()
	}
	delay := rl.reserve()
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
