package pacer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"", KindFixed, false},
		{"fixed", KindFixed, false},
		{"LEAKY", KindLeaky, false},
		{" token ", KindToken, false},
		{"bucket", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "fixed, leaky, token")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKinds_AllParse(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	assert.Equal(t, "fixed, leaky, token", Names())
}

func TestNew_SelectsImplementation(t *testing.T) {
	assert.IsType(t, Unlimited{}, New(KindFixed, 0))
	assert.IsType(t, Unlimited{}, New(KindLeaky, -5))
	assert.IsType(t, &FixedInterval{}, New(KindFixed, 10))
	assert.IsType(t, &LeakyBucket{}, New(KindLeaky, 10))
	assert.IsType(t, &rate.Limiter{}, New(KindToken, 10))
}

func TestUnlimited_NeverBlocks(t *testing.T) {
	p := Unlimited{}
	start := time.Now()
	for i := 0; i < 1000; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestUnlimited_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Unlimited{}.Wait(ctx), context.Canceled)
}

func TestFixedInterval_SleepsBeforeEverySubmission(t *testing.T) {
	p := NewFixedInterval(10)
	assert.Equal(t, 100*time.Millisecond, p.Interval())

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	elapsed := time.Since(start)

	// Five sleeps of 100ms, the first one included.
	assert.GreaterOrEqual(t, elapsed, 500*time.Millisecond)
	assert.Less(t, elapsed, 900*time.Millisecond)
}

func TestFixedInterval_HugeRateDegradesToUnlimited(t *testing.T) {
	p := NewFixedInterval(2_000_000_000)
	assert.Equal(t, time.Duration(0), p.Interval())

	start := time.Now()
	for i := 0; i < 1000; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestFixedInterval_RespectsContext(t *testing.T) {
	p := NewFixedInterval(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLeakyBucket_FirstImmediate(t *testing.T) {
	lb := NewLeakyBucket(100)

	now := time.Now()
	next := lb.Next()
	assert.Less(t, next.Sub(now), 5*time.Millisecond)
}

func TestLeakyBucket_SpacesSlots(t *testing.T) {
	lb := NewLeakyBucket(100) // 10ms apart

	_ = lb.Next()
	second := lb.Next()
	third := lb.Next()

	assert.InDelta(t, float64(10*time.Millisecond), float64(third.Sub(second)), float64(time.Millisecond))
	assert.True(t, second.After(time.Now()), "second slot should be reserved in the future")
}

func TestLeakyBucket_RateOverTime(t *testing.T) {
	lb := NewLeakyBucket(50)

	start := time.Now()
	for i := 0; i < 11; i++ {
		require.NoError(t, lb.Wait(context.Background()))
	}
	elapsed := time.Since(start)

	// First slot is free, the remaining ten are 20ms apart.
	assert.GreaterOrEqual(t, elapsed, 180*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestLeakyBucket_InvalidRate(t *testing.T) {
	for _, perSecond := range []float64{0, -3} {
		lb := NewLeakyBucket(perSecond)
		first := lb.Next()
		second := lb.Next()
		assert.InDelta(t, float64(time.Second), float64(second.Sub(first)), float64(5*time.Millisecond))
	}
}

func TestLeakyBucket_WaitRespectsContext(t *testing.T) {
	lb := NewLeakyBucket(1)
	_ = lb.Next()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, lb.Wait(ctx), context.DeadlineExceeded)
}

func TestTokenPacer_Rate(t *testing.T) {
	p := New(KindToken, 20)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}

	// Burst of one: first token free, four more at 50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
