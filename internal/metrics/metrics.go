// Package metrics reduces a run's outcome records into a Summary.
//
// Aggregation is a pure function of its inputs: calling Aggregate twice on
// the same records yields equal summaries, and the records are never
// modified.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/wesleyorama2/modload/internal/config"
	"github.com/wesleyorama2/modload/internal/outcome"
)

// Summary is the aggregate description of one run.
type Summary struct {
	RunID            string  `json:"runId"`
	TotalRequests    int     `json:"totalRequests"`
	SuccessCount     int     `json:"successCount"`
	FailCount        int     `json:"failCount"`
	SuccessRate      float64 `json:"successRate"`
	MinLatencyMs     int64   `json:"minLatencyMs"`
	MaxLatencyMs     int64   `json:"maxLatencyMs"`
	AvgLatencyMs     float64 `json:"avgLatencyMs"`
	P50LatencyMs     int64   `json:"p50LatencyMs"`
	P95LatencyMs     int64   `json:"p95LatencyMs"`
	P99LatencyMs     int64   `json:"p99LatencyMs"`
	ThroughputRps    float64 `json:"throughputRps"`
	AvgTTFBMs        float64 `json:"avgTtfbMs"`
	DurationSeconds  float64 `json:"durationSeconds"`
	ConcurrencyLimit int     `json:"concurrencyLimit"`

	// Breakdowns
	StatusCodes      map[int]int    `json:"statusCodes,omitempty"`
	Errors           map[string]int `json:"errors,omitempty"`
	RiskLevels       map[string]int `json:"riskLevels,omitempty"`
	SchemaViolations int            `json:"schemaViolations,omitempty"`

	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// Aggregate computes the summary of records for the given run.
//
// totalRequests is the number of records. Latency statistics are 0 when
// there are no records, and throughput is 0 when durationSeconds <= 0.
// AvgTTFBMs only covers requests that received a response.
func Aggregate(records []outcome.Record, run config.RunContext, durationSeconds float64) Summary {
	latencies := make([]int64, len(records))
	for i, r := range records {
		latencies[i] = r.LatencyMs
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	s := Summary{
		RunID:            run.RunID,
		TotalRequests:    len(records),
		DurationSeconds:  durationSeconds,
		ConcurrencyLimit: run.ConcurrencyLimit,
	}

	var ttfbSum int64
	responses := 0
	for _, r := range records {
		if r.StatusCode != 0 {
			ttfbSum += r.TTFBMs
			responses++
		}
		if r.Success {
			s.SuccessCount++
		}
		if r.StatusCode != 0 {
			if s.StatusCodes == nil {
				s.StatusCodes = make(map[int]int)
			}
			s.StatusCodes[r.StatusCode]++
		}
		if r.Error != "" {
			if s.Errors == nil {
				s.Errors = make(map[string]int)
			}
			s.Errors[r.Error]++
		}
		if r.RiskLevel != "" {
			if s.RiskLevels == nil {
				s.RiskLevels = make(map[string]int)
			}
			s.RiskLevels[r.RiskLevel]++
		}
		if r.SchemaError != "" {
			s.SchemaViolations++
		}
	}
	s.FailCount = s.TotalRequests - s.SuccessCount

	if responses > 0 {
		s.AvgTTFBMs = float64(ttfbSum) / float64(responses)
	}

	if s.TotalRequests > 0 {
		s.SuccessRate = float64(s.SuccessCount) / float64(s.TotalRequests) * 100
	}

	if len(latencies) > 0 {
		s.MinLatencyMs = latencies[0]
		s.MaxLatencyMs = latencies[len(latencies)-1]

		var sum int64
		for _, l := range latencies {
			sum += l
		}
		s.AvgLatencyMs = float64(sum) / float64(len(latencies))
	}

	s.P50LatencyMs = Percentile(latencies, 50)
	s.P95LatencyMs = Percentile(latencies, 95)
	s.P99LatencyMs = Percentile(latencies, 99)

	if durationSeconds > 0 {
		s.ThroughputRps = float64(s.TotalRequests) / durationSeconds
	}

	return s
}

// Percentile returns the nearest-rank percentile of an ascending list:
// the element at floor(len*p/100), clamped to the last index. An empty list
// yields 0.
//
// For [10 20 30 40 50] this gives p50 = 30 and p99 = p100 = 50.
func Percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(float64(len(sorted)) * p / 100))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// WithWindow returns a copy of s stamped with the run's wall-clock window.
func (s Summary) WithWindow(start, end time.Time) Summary {
	s.StartTime = start.Format(time.RFC3339Nano)
	s.EndTime = end.Format(time.RFC3339Nano)
	return s
}

// FailureRate returns the failed share of requests as a percentage.
func (s Summary) FailureRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.FailCount) / float64(s.TotalRequests) * 100
}
