package pacer

import (
	"context"
	"sync"
	"time"
)

// LeakyBucket schedules submissions on a virtual drip clock.
//
// Each call to Next reserves the next slot and returns when it starts. If
// the caller is behind schedule the slot is now. Unlike FixedInterval the
// first submission is immediate and time spent outside Wait is credited, so
// the long-run rate converges on the nominal rate. There is no bursting:
// at most one slot accumulates while the dispatcher is busy.
//
// LeakyBucket is safe for concurrent use.
type LeakyBucket struct {
	rate        float64 // submissions per second
	lastDrip    time.Time
	accumulated float64
	mu          sync.Mutex
}

// NewLeakyBucket creates a leaky bucket for perSecond submissions.
// Non-positive rates fall back to one per second.
func NewLeakyBucket(perSecond float64) *LeakyBucket {
	if perSecond <= 0 {
		perSecond = 1.0
	}
	return &LeakyBucket{
		rate: perSecond,
		// Start one full slot in credit so the first Next is immediate.
		lastDrip: time.Now().Add(-time.Duration(float64(time.Second) / perSecond)),
	}
}

// Next reserves the next slot and returns its start time, which may be in
// the past.
func (lb *LeakyBucket) Next() time.Time {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	now := time.Now()

	// A slot is already reserved in the future: queue behind it.
	if now.Before(lb.lastDrip) {
		next := lb.lastDrip.Add(time.Duration(float64(time.Second) / lb.rate))
		lb.accumulated = 0
		lb.lastDrip = next
		return next
	}

	lb.accumulated += now.Sub(lb.lastDrip).Seconds() * lb.rate
	if lb.accumulated > 1.0 {
		lb.accumulated = 1.0
	}

	if lb.accumulated >= 1.0 {
		lb.accumulated -= 1.0
		lb.lastDrip = now
		return now
	}

	deficit := 1.0 - lb.accumulated
	next := now.Add(time.Duration(deficit / lb.rate * float64(time.Second)))
	lb.accumulated = 0

	// Anchor on the reserved slot, not on now; otherwise waking at next
	// would count the same interval twice.
	lb.lastDrip = next

	return next
}

// Wait implements Pacer.
func (lb *LeakyBucket) Wait(ctx context.Context) error {
	wait := time.Until(lb.Next())
	if wait <= 0 {
		return ctx.Err()
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
