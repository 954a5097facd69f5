// Package collector accumulates request outcomes as workers complete them.
package collector

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/modload/internal/outcome"
)

// Histogram range: 1 microsecond to 1 hour, 3 significant figures.
const (
	histMin     = 1
	histMax     = 3_600_000_000
	histSigFigs = 3
)

// ProgressFunc is told how many of total outcomes have been collected.
// It is called on the goroutine that appended the outcome, while no
// collector lock is held.
type ProgressFunc func(completed, total int)

// Collector is a concurrency-safe, append-only set of outcome records.
//
// Workers call Add as their requests finish. Once the pool has drained,
// Records returns the finalized set for aggregation. Order is completion
// order and carries no meaning.
type Collector struct {
	mu      sync.Mutex
	records []outcome.Record
	success int64
	failed  int64
	hist    *hdrhistogram.Histogram

	total    int
	every    int
	progress ProgressFunc
	start    time.Time
}

// New creates a collector expecting total outcomes. progress may be nil.
func New(total int, progress ProgressFunc) *Collector {
	if total < 0 {
		total = 0
	}
	every := total / 20
	if every < 1 {
		every = 1
	}
	return &Collector{
		records:  make([]outcome.Record, 0, total),
		hist:     hdrhistogram.New(histMin, histMax, histSigFigs),
		total:    total,
		every:    every,
		progress: progress,
		start:    time.Now(),
	}
}

// Add appends a record. Safe for concurrent use.
func (c *Collector) Add(r outcome.Record) {
	micros := r.LatencyMs * 1000
	if micros < histMin {
		micros = histMin
	}
	if micros > histMax {
		micros = histMax
	}

	c.mu.Lock()
	c.records = append(c.records, r)
	if r.Success {
		c.success++
	} else {
		c.failed++
	}
	// micros is clamped to the histogram range, so RecordValue cannot fail.
	_ = c.hist.RecordValue(micros)
	completed := len(c.records)
	c.mu.Unlock()

	if c.progress != nil && (completed%c.every == 0 || completed == c.total) {
		c.progress(completed, c.total)
	}
}

// Len returns the number of records collected so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Records returns a copy of the collected records.
func (c *Collector) Records() []outcome.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]outcome.Record, len(c.records))
	copy(out, c.records)
	return out
}

// Snapshot returns live counters for progress display.
//
// Latency figures come from an HDR histogram and are approximate; the final
// summary is always computed from Records.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Completed: len(c.records),
		Total:     c.total,
		Success:   c.success,
		Failed:    c.failed,
		Elapsed:   time.Since(c.start),
	}
	if c.hist.TotalCount() > 0 {
		s.LatencyMean = time.Duration(c.hist.Mean()) * time.Microsecond
		s.LatencyP50 = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		s.LatencyP95 = time.Duration(c.hist.ValueAtQuantile(95)) * time.Microsecond
	}
	return s
}

// Snapshot is a point-in-time view of collection progress.
type Snapshot struct {
	Completed   int           `json:"completed"`
	Total       int           `json:"total"`
	Success     int64         `json:"success"`
	Failed      int64         `json:"failed"`
	LatencyMean time.Duration `json:"latencyMean"`
	LatencyP50  time.Duration `json:"latencyP50"`
	LatencyP95  time.Duration `json:"latencyP95"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Progress returns the completed fraction in [0,1]. An empty run is complete.
func (s Snapshot) Progress() float64 {
	if s.Total == 0 {
		return 1
	}
	return float64(s.Completed) / float64(s.Total)
}
