package report

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/modload/internal/http"
	"github.com/wesleyorama2/modload/internal/metrics"
)

const (
	calculatePath = "/api/v1/metrics/calculate/"
	reportPath    = "/api/v1/metrics/report/"
)

var (
	// ErrSinkRejected is returned when the metrics service answers the
	// calculate call with a non-200 status.
	ErrSinkRejected = errors.New("metrics service rejected the run")

	// ErrReportNotFound is returned when the service has no report for a run.
	ErrReportNotFound = errors.New("report not found")
)

// ReportURL returns the address of the stored report for runID.
func ReportURL(baseURL, runID string) string {
	return strings.TrimRight(baseURL, "/") + reportPath + url.PathEscape(runID)
}

// ServiceMetrics is the metrics document computed by the moderation
// service from its own stored results.
type ServiceMetrics struct {
	RunID         string  `json:"runId"`
	TotalRequests int64   `json:"totalRequests"`
	SuccessCount  int64   `json:"successCount"`
	FailCount     int64   `json:"failCount"`
	SuccessRate   float64 `json:"successRate"`
	MinLatency    int64   `json:"minLatency"`
	MaxLatency    int64   `json:"maxLatency"`
	AvgLatency    int64   `json:"avgLatency"`
	P50Latency    int64   `json:"p50Latency"`
	P95Latency    int64   `json:"p95Latency"`
	P99Latency    int64   `json:"p99Latency"`
	ThroughputRps float64 `json:"throughputRps"`
	DurationMs    int64   `json:"durationMs"`
	Concurrency   int64   `json:"concurrency"`
	StartTime     string  `json:"startTime,omitempty"`
	EndTime       string  `json:"endTime,omitempty"`
}

// Report is the stored report for one run.
type Report struct {
	RunID        string         `json:"runId"`
	TotalResults int64          `json:"totalResults"`
	Metrics      ServiceMetrics `json:"metrics"`
}

func parseServiceMetrics(m gjson.Result) ServiceMetrics {
	return ServiceMetrics{
		RunID:         m.Get("runId").String(),
		TotalRequests: m.Get("totalRequests").Int(),
		SuccessCount:  m.Get("successCount").Int(),
		FailCount:     m.Get("failCount").Int(),
		SuccessRate:   m.Get("successRate").Float(),
		MinLatency:    m.Get("minLatency").Int(),
		MaxLatency:    m.Get("maxLatency").Int(),
		AvgLatency:    m.Get("avgLatency").Int(),
		P50Latency:    m.Get("p50Latency").Int(),
		P95Latency:    m.Get("p95Latency").Int(),
		P99Latency:    m.Get("p99Latency").Int(),
		ThroughputRps: m.Get("throughputRps").Float(),
		DurationMs:    m.Get("durationMs").Int(),
		Concurrency:   m.Get("concurrency").Int(),
		StartTime:     m.Get("startTime").String(),
		EndTime:       m.Get("endTime").String(),
	}
}

// HTTPSink asks the moderation service to calculate and store the metrics
// of a finished run.
//
// The service computes its figures from the results it recorded itself, so
// the request carries only the run id and the concurrency limit.
type HTTPSink struct {
	client *http.Client
}

// NewHTTPSink creates a sink that posts through client. The client must be
// configured with the service base URL and the sink timeout.
func NewHTTPSink(client *http.Client) *HTTPSink {
	return &HTTPSink{client: client}
}

// Publish sends POST /api/v1/metrics/calculate/{runId}?concurrency=N.
//
// It returns the metrics document the service answered with. Any transport
// error or non-200 status is returned; callers treat it as a warning.
func (s *HTTPSink) Publish(ctx context.Context, summary metrics.Summary) (*ServiceMetrics, error) {
	req := http.NewRequest(nethttp.MethodPost, calculatePath+url.PathEscape(summary.RunID)).
		WithQueryParam("concurrency", strconv.Itoa(summary.ConcurrencyLimit))

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != nethttp.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrSinkRejected, resp.StatusCode)
	}

	if !gjson.ValidBytes(resp.Body) {
		return &ServiceMetrics{RunID: summary.RunID}, nil
	}
	m := parseServiceMetrics(gjson.ParseBytes(resp.Body))
	return &m, nil
}

// FetchReport retrieves the stored report for runID.
func FetchReport(ctx context.Context, client *http.Client, runID string) (*Report, error) {
	resp, err := client.Do(ctx, http.NewRequest(nethttp.MethodGet, reportPath+url.PathEscape(runID)))
	if err != nil {
		return nil, fmt.Errorf("fetch report: %w", err)
	}

	switch {
	case resp.StatusCode == nethttp.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, runID)
	case resp.StatusCode != nethttp.StatusOK:
		return nil, fmt.Errorf("fetch report: HTTP %d", resp.StatusCode)
	case !gjson.ValidBytes(resp.Body):
		return nil, fmt.Errorf("fetch report: response is not JSON")
	}

	doc := gjson.ParseBytes(resp.Body)
	r := &Report{
		RunID:        doc.Get("runId").String(),
		TotalResults: doc.Get("totalResults").Int(),
		Metrics:      parseServiceMetrics(doc.Get("metrics")),
	}
	if r.RunID == "" {
		r.RunID = runID
	}
	return r, nil
}
