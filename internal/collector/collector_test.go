package collector

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/modload/internal/outcome"
)

func TestCollector_ConcurrentAdds(t *testing.T) {
	const workers = 50
	const perWorker = 200
	total := workers * perWorker

	c := New(total, nil)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.Add(outcome.Record{
					RequestID: fmt.Sprintf("req-%d-%d", w, i),
					Success:   i%2 == 0,
					LatencyMs: int64(i),
				})
			}
		}(w)
	}
	wg.Wait()

	records := c.Records()
	require.Len(t, records, total)
	assert.Equal(t, total, c.Len())

	seen := make(map[string]bool, total)
	for _, r := range records {
		assert.False(t, seen[r.RequestID], "duplicate %s", r.RequestID)
		seen[r.RequestID] = true
	}

	snap := c.Snapshot()
	assert.Equal(t, total, snap.Completed)
	assert.Equal(t, int64(total/2), snap.Success)
	assert.Equal(t, int64(total/2), snap.Failed)
	assert.Equal(t, 1.0, snap.Progress())
}

func TestCollector_ProgressCadence(t *testing.T) {
	var mu sync.Mutex
	var calls []int

	c := New(100, func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 100, total)
		calls = append(calls, completed)
	})

	for i := 0; i < 100; i++ {
		c.Add(outcome.Record{RequestID: fmt.Sprint(i), Success: true})
	}

	// Every 5 completions: 5, 10, ..., 100.
	require.Len(t, calls, 20)
	assert.Equal(t, 5, calls[0])
	assert.Equal(t, 100, calls[len(calls)-1])
}

func TestCollector_ProgressSmallRun(t *testing.T) {
	var calls []int
	c := New(3, func(completed, _ int) { calls = append(calls, completed) })

	for i := 0; i < 3; i++ {
		c.Add(outcome.Record{})
	}

	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestCollector_RecordsIsACopy(t *testing.T) {
	c := New(1, nil)
	c.Add(outcome.Record{RequestID: "a"})

	records := c.Records()
	records[0].RequestID = "mutated"

	assert.Equal(t, "a", c.Records()[0].RequestID)
}

func TestCollector_SnapshotLatency(t *testing.T) {
	c := New(10, nil)
	for i := 1; i <= 10; i++ {
		c.Add(outcome.Record{Success: true, LatencyMs: int64(i * 10)})
	}

	snap := c.Snapshot()
	assert.InDelta(t, float64(50*time.Millisecond), float64(snap.LatencyP50), float64(2*time.Millisecond))
	assert.InDelta(t, float64(100*time.Millisecond), float64(snap.LatencyP95), float64(2*time.Millisecond))
	assert.InDelta(t, float64(55*time.Millisecond), float64(snap.LatencyMean), float64(2*time.Millisecond))
}

func TestCollector_EmptyRun(t *testing.T) {
	c := New(0, nil)
	snap := c.Snapshot()

	assert.Equal(t, 0, snap.Completed)
	assert.Equal(t, time.Duration(0), snap.LatencyP95)
	assert.Equal(t, 1.0, snap.Progress())
	assert.Empty(t, c.Records())
}
