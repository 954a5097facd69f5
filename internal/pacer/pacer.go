// Package pacer spaces out request submissions to a target rate.
//
// A pacer controls when the dispatcher may hand the next request to the
// worker pool. It never limits how many requests are in flight; that is the
// engine's concurrency bound.
package pacer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Pacer blocks the dispatcher until the next submission is allowed.
type Pacer interface {
	// Wait returns nil once the next submission may proceed, or ctx.Err()
	// if the context ends first.
	Wait(ctx context.Context) error
}

// Kind selects a pacing strategy.
type Kind string

const (
	// KindFixed sleeps one interval before every submission. This is the
	// default and matches a plain sleep-then-submit loop, drift included.
	KindFixed Kind = "fixed"

	// KindLeaky schedules submissions on a drift-free drip clock.
	KindLeaky Kind = "leaky"

	// KindToken uses a token bucket with a burst of one.
	KindToken Kind = "token"
)

// Kinds lists the accepted pacing strategies.
var Kinds = []Kind{KindFixed, KindLeaky, KindToken}

// Names returns the accepted pacing names as a comma separated list.
func Names() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// ParseKind converts a user supplied name to a Kind. Empty selects KindFixed.
func ParseKind(s string) (Kind, error) {
	name := Kind(strings.ToLower(strings.TrimSpace(s)))
	if name == "" {
		return KindFixed, nil
	}
	for _, k := range Kinds {
		if k == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown pacing %q (expected one of %s)", s, Names())
}

// New returns a pacer of the given kind. perSecond <= 0 disables pacing.
func New(kind Kind, perSecond int) Pacer {
	if perSecond <= 0 {
		return Unlimited{}
	}
	switch kind {
	case KindLeaky:
		return NewLeakyBucket(float64(perSecond))
	case KindToken:
		return rate.NewLimiter(rate.Limit(perSecond), 1)
	default:
		return NewFixedInterval(perSecond)
	}
}

// Unlimited never waits.
type Unlimited struct{}

// Wait implements Pacer.
func (Unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}

// FixedInterval sleeps for 1/rate seconds before each submission.
//
// It does not compensate for time spent between calls, so the achieved rate
// is at most the nominal rate and drifts lower as dispatch overhead grows.
type FixedInterval struct {
	interval time.Duration
}

// NewFixedInterval creates a fixed-interval pacer for perSecond submissions.
// Rates beyond the timer resolution collapse to a zero interval, which
// behaves like Unlimited.
func NewFixedInterval(perSecond int) *FixedInterval {
	var interval time.Duration
	if perSecond > 0 {
		interval = time.Second / time.Duration(perSecond)
	}
	return &FixedInterval{interval: interval}
}

// Interval returns the sleep applied before each submission.
func (f *FixedInterval) Interval() time.Duration {
	return f.interval
}

// Wait implements Pacer.
func (f *FixedInterval) Wait(ctx context.Context) error {
	if f.interval <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(f.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
