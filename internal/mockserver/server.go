// Package mockserver is an in-memory stand-in for the moderation service.
//
// It implements the endpoints modload talks to: the moderation call, the
// metrics calculation call and the stored report, plus a lookup of saved
// runs. Moderation verdicts
// come from simple keyword rules, and every call is recorded so that the
// metrics endpoints can report on it.
package mockserver

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wesleyorama2/modload/internal/config"
	"github.com/wesleyorama2/modload/internal/metrics"
	"github.com/wesleyorama2/modload/internal/outcome"
	"github.com/wesleyorama2/modload/internal/payload"
	"github.com/wesleyorama2/modload/internal/report"
)

// Concurrency bounds accepted by the calculate endpoint.
const (
	minConcurrency = 1
	maxConcurrency = 500
)

// Options configures the simulated service.
type Options struct {
	// MinLatency and MaxLatency bound the simulated processing time
	MinLatency time.Duration
	MaxLatency time.Duration

	// ErrorRate is the fraction of moderation calls answered with HTTP 500
	ErrorRate float64

	// Seed fixes latency and error sampling; 0 means time-seeded
	Seed int64

	Logger zerolog.Logger
}

// DefaultOptions mirrors the latency profile of the service's mock provider.
func DefaultOptions() Options {
	return Options{
		MinLatency: 50 * time.Millisecond,
		MaxLatency: 150 * time.Millisecond,
		Logger:     zerolog.Nop(),
	}
}

type runRecords struct {
	records []outcome.Record
	first   time.Time
	last    time.Time
}

// Server records moderation calls per run. It is safe for concurrent use.
type Server struct {
	opts Options

	rngMu sync.Mutex
	rng   *rand.Rand

	mu     sync.Mutex
	runs   map[string]*runRecords
	stored map[string]report.ServiceMetrics
}

// New creates a mock service.
func New(opts Options) *Server {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxLatency < opts.MinLatency {
		opts.MaxLatency = opts.MinLatency
	}
	return &Server{
		opts:   opts,
		rng:    rand.New(rand.NewSource(seed)),
		runs:   make(map[string]*runRecords),
		stored: make(map[string]report.ServiceMetrics),
	}
}

// Handler returns the HTTP routes of the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/moderate", s.handleModerate)
	mux.HandleFunc("POST /api/v1/metrics/calculate/{runId}", s.handleCalculate)
	mux.HandleFunc("GET /api/v1/metrics/report/{runId}", s.handleReport)
	mux.HandleFunc("GET /api/v1/metrics/runs/{runId}", s.handleRun)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	return mux
}

// Stored returns the metrics saved by the calculate endpoint for runID.
func (s *Server) Stored(runID string) (report.ServiceMetrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.stored[runID]
	return m, ok
}

type moderationResponse struct {
	RequestID       string  `json:"requestId"`
	RiskLevel       string  `json:"riskLevel"`
	ConfidenceScore float64 `json:"confidenceScore"`
	LatencyMs       int64   `json:"latencyMs"`
	Success         bool    `json:"success"`
}

// RunInfo is a saved run as returned by the runs endpoint.
type RunInfo struct {
	RunID         string  `json:"runId"`
	Status        string  `json:"status"`
	StartTime     string  `json:"startTime"`
	EndTime       string  `json:"endTime"`
	TotalRequests int64   `json:"totalRequests"`
	SuccessCount  int64   `json:"successCount"`
	FailCount     int64   `json:"failCount"`
	AvgLatencyMs  int64   `json:"avgLatencyMs"`
	P95LatencyMs  int64   `json:"p95LatencyMs"`
	P99LatencyMs  int64   `json:"p99LatencyMs"`
	ThroughputRps float64 `json:"throughputRps"`
	Concurrency   int64   `json:"concurrency"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleModerate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var p payload.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || strings.TrimSpace(p.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}

	delay, fail := s.sample()
	select {
	case <-time.After(delay):
	case <-r.Context().Done():
		return
	}

	latency := time.Since(start).Milliseconds()
	if fail {
		s.record(p.RunID, outcome.HTTPFailure(p.ID, latency, http.StatusInternalServerError), start)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "provider unavailable"})
		return
	}

	risk, confidence := Classify(p.Text)
	resp := moderationResponse{
		RequestID:       p.ID,
		RiskLevel:       risk,
		ConfidenceScore: confidence,
		LatencyMs:       latency,
		Success:         true,
	}
	body, _ := json.Marshal(resp)
	s.record(p.RunID, outcome.Succeeded(p.ID, latency, body), start)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")

	concurrency := 10
	if raw := r.URL.Query().Get("concurrency"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < minConcurrency || n > maxConcurrency {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "concurrency must be between 1 and 500"})
			return
		}
		concurrency = n
	}

	m, ok := s.calculate(runID, concurrency)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "TestRun not found: " + runID})
		return
	}

	s.mu.Lock()
	s.stored[runID] = m
	s.mu.Unlock()

	s.opts.Logger.Info().Str("run_id", runID).Int64("requests", m.TotalRequests).Msg("metrics saved")
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")

	concurrency := 0
	if stored, ok := s.Stored(runID); ok {
		concurrency = int(stored.Concurrency)
	}

	m, ok := s.calculate(runID, concurrency)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "TestRun not found: " + runID})
		return
	}

	writeJSON(w, http.StatusOK, report.Report{
		RunID:        runID,
		TotalResults: m.TotalRequests,
		Metrics:      m,
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("runId")

	m, ok := s.Stored(runID)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "TestRun not found: " + runID})
		return
	}

	writeJSON(w, http.StatusOK, RunInfo{
		RunID:         m.RunID,
		Status:        "COMPLETED",
		StartTime:     m.StartTime,
		EndTime:       m.EndTime,
		TotalRequests: m.TotalRequests,
		SuccessCount:  m.SuccessCount,
		FailCount:     m.FailCount,
		AvgLatencyMs:  m.AvgLatency,
		P95LatencyMs:  m.P95Latency,
		P99LatencyMs:  m.P99Latency,
		ThroughputRps: m.ThroughputRps,
		Concurrency:   m.Concurrency,
	})
}

// calculate aggregates everything recorded for runID.
func (s *Server) calculate(runID string, concurrency int) (report.ServiceMetrics, bool) {
	s.mu.Lock()
	rr, ok := s.runs[runID]
	if !ok || len(rr.records) == 0 {
		s.mu.Unlock()
		return report.ServiceMetrics{}, false
	}
	records := make([]outcome.Record, len(rr.records))
	copy(records, rr.records)
	first, last := rr.first, rr.last
	s.mu.Unlock()

	duration := last.Sub(first)
	summary := metrics.Aggregate(records, config.RunContext{RunID: runID, ConcurrencyLimit: concurrency}, duration.Seconds())

	return report.ServiceMetrics{
		RunID:         runID,
		TotalRequests: int64(summary.TotalRequests),
		SuccessCount:  int64(summary.SuccessCount),
		FailCount:     int64(summary.FailCount),
		SuccessRate:   summary.SuccessRate,
		MinLatency:    summary.MinLatencyMs,
		MaxLatency:    summary.MaxLatencyMs,
		AvgLatency:    int64(summary.AvgLatencyMs),
		P50Latency:    summary.P50LatencyMs,
		P95Latency:    summary.P95LatencyMs,
		P99Latency:    summary.P99LatencyMs,
		ThroughputRps: summary.ThroughputRps,
		DurationMs:    duration.Milliseconds(),
		Concurrency:   int64(concurrency),
		StartTime:     first.Format(time.RFC3339),
		EndTime:       last.Format(time.RFC3339),
	}, true
}

func (s *Server) record(runID string, rec outcome.Record, start time.Time) {
	end := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rr, ok := s.runs[runID]
	if !ok {
		rr = &runRecords{first: start}
		s.runs[runID] = rr
	}
	rr.records = append(rr.records, rec)
	if start.Before(rr.first) {
		rr.first = start
	}
	if end.After(rr.last) {
		rr.last = end
	}
}

// sample draws a processing delay and whether the call should fail.
func (s *Server) sample() (time.Duration, bool) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()

	delay := s.opts.MinLatency
	if spread := s.opts.MaxLatency - s.opts.MinLatency; spread > 0 {
		delay += time.Duration(s.rng.Int63n(int64(spread)))
	}
	return delay, s.opts.ErrorRate > 0 && s.rng.Float64() < s.opts.ErrorRate
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
