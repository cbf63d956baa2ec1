package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Interval spaces calls out by a minimum inter-call delay. All provider
// fetches share one instance, so concurrent callers queue for the next free
// slot instead of failing. Free-tier cadence: 5 calls/minute means one slot
// every 12s.
type Interval struct {
	mu    sync.Mutex
	delay time.Duration
	last  time.Time
}

// NewInterval builds a limiter allowing callsPerMinute evenly spaced calls.
func NewInterval(callsPerMinute int) *Interval {
	if callsPerMinute <= 0 {
		callsPerMinute = 1
	}
	return &Interval{delay: time.Minute / time.Duration(callsPerMinute)}
}

// Wait blocks until the caller's reserved slot arrives. Cancelling ctx
// abandons the wait; the slot stays reserved so ordering is preserved for
// callers still queued.
func (i *Interval) Wait(ctx context.Context) error {
	i.mu.Lock()
	now := time.Now()
	next := i.last.Add(i.delay)
	if next.Before(now) {
		next = now
	}
	i.last = next
	i.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay reports the configured inter-call spacing.
func (i *Interval) Delay() time.Duration {
	return i.delay
}
