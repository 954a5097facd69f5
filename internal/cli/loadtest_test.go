package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/modload/internal/config"
	"github.com/wesleyorama2/modload/internal/metrics"
)

// moderationService is a fake of the moderation API.
type moderationService struct {
	moderate   atomic.Int32
	calculate  atomic.Int32
	sinkStatus int
	failEvery  int32

	mu         sync.Mutex
	sinkQuery  string
	sinkPath   string
	userAgents map[string]bool
	tenants    map[string]bool
}

func newModerationService(t *testing.T) (*moderationService, *httptest.Server) {
	t.Helper()
	svc := &moderationService{sinkStatus: http.StatusOK, userAgents: map[string]bool{}, tenants: map[string]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/moderate", func(w http.ResponseWriter, r *http.Request) {
		n := svc.moderate.Add(1)
		svc.mu.Lock()
		svc.userAgents[r.Header.Get("User-Agent")] = true
		svc.tenants[r.Header.Get("X-Tenant")] = true
		svc.mu.Unlock()

		if svc.failEvery > 0 && n%svc.failEvery == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		fmt.Fprintf(w, `{"requestId":%q,"riskLevel":"LOW","confidenceScore":0.8,"success":true}`, body["id"])
	})
	mux.HandleFunc("/api/v1/metrics/calculate/", func(w http.ResponseWriter, r *http.Request) {
		svc.calculate.Add(1)
		svc.mu.Lock()
		svc.sinkPath = r.URL.Path
		svc.sinkQuery = r.URL.RawQuery
		svc.mu.Unlock()
		w.WriteHeader(svc.sinkStatus)
		w.Write([]byte(`{"runId":"x","totalRequests":6}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return svc, server
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestLoadTest_FullRun(t *testing.T) {
	svc, server := newModerationService(t)

	stdout, _, err := execute(t,
		"--url", server.URL,
		"--requests", "6",
		"--concurrency", "3",
		"--run-id", "run-test-1",
		"--no-color",
	)
	require.NoError(t, err)

	assert.Equal(t, int32(6), svc.moderate.Load())
	assert.Equal(t, int32(1), svc.calculate.Load())
	assert.Equal(t, "/api/v1/metrics/calculate/run-test-1", svc.sinkPath)
	assert.Equal(t, "concurrency=3", svc.sinkQuery)
	assert.True(t, svc.userAgents["modload/"+version])

	assert.Contains(t, stdout, "Starting Load Test")
	assert.Contains(t, stdout, "Progress: 100.0% (6/6)")
	assert.Contains(t, stdout, "Test Results Summary")
	assert.Contains(t, stdout, "Success Rate:     100.00%")
	assert.Contains(t, stdout, "Metrics saved")
	assert.Contains(t, stdout, "curl "+server.URL+"/api/v1/metrics/report/run-test-1")
}

func TestLoadTest_FailuresDoNotFailTheRun(t *testing.T) {
	svc, server := newModerationService(t)
	svc.failEvery = 2

	stdout, _, err := execute(t, "--url", server.URL, "--requests", "10", "--concurrency", "1", "--no-color")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Failed:           5")
	assert.Contains(t, stdout, "HTTP 503")
}

func TestLoadTest_SinkFailureIsAWarning(t *testing.T) {
	svc, server := newModerationService(t)
	svc.sinkStatus = http.StatusInternalServerError

	stdout, stderr, err := execute(t, "--url", server.URL, "--requests", "2", "--no-color")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Failed to save metrics")
	assert.Contains(t, stderr, "failed to save metrics")
	assert.Contains(t, stdout, "/api/v1/metrics/report/")
}

func TestLoadTest_NoSave(t *testing.T) {
	svc, server := newModerationService(t)

	_, _, err := execute(t, "--url", server.URL, "--requests", "2", "--no-save", "--no-color")
	require.NoError(t, err)
	assert.Equal(t, int32(0), svc.calculate.Load())
}

func TestLoadTest_ZeroRequests(t *testing.T) {
	svc, server := newModerationService(t)

	stdout, _, err := execute(t, "--url", server.URL, "--requests", "0", "--no-color")
	require.NoError(t, err)
	assert.Equal(t, int32(0), svc.moderate.Load())
	assert.Contains(t, stdout, "Total Requests:   0")
}

func TestLoadTest_ConfigErrors(t *testing.T) {
	svc, server := newModerationService(t)

	tests := []struct {
		name string
		args []string
	}{
		{"zero concurrency", []string{"--concurrency", "0"}},
		{"negative requests", []string{"--requests", "-1"}},
		{"negative rate limit", []string{"--rate-limit", "-2"}},
		{"unknown pacing", []string{"--pacing", "burst"}},
		{"bad header", []string{"-H", "no-colon"}},
		{"bad log level", []string{"--log-level", "loud"}},
		{"missing config file", []string{"--config", "/nonexistent/load.yaml"}},
		{"missing schema file", []string{"--response-schema", "/nonexistent/schema.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--url", server.URL, "--no-color"}, tt.args...)
			_, _, err := execute(t, args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, config.ErrInvalidConfig), "got %v", err)
		})
	}

	assert.Equal(t, int32(0), svc.moderate.Load(), "no request may be sent on a configuration error")
}

func TestLoadTest_JSONOutput(t *testing.T) {
	_, server := newModerationService(t)

	stdout, stderr, err := execute(t,
		"--url", server.URL,
		"--requests", "4",
		"--run-id", "run-json",
		"--json", "--no-save", "--no-color",
	)
	require.NoError(t, err)

	var summary metrics.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary), "stdout should hold only JSON: %s", stdout)
	assert.Equal(t, "run-json", summary.RunID)
	assert.Equal(t, 4, summary.TotalRequests)
	assert.Equal(t, 4, summary.SuccessCount)
	assert.Equal(t, map[string]int{"LOW": 4}, summary.RiskLevels)
	assert.Contains(t, stderr, "Test Results Summary")
}

func TestLoadTest_OutputFile(t *testing.T) {
	_, server := newModerationService(t)
	path := filepath.Join(t.TempDir(), "summary.json")

	_, _, err := execute(t, "--url", server.URL, "--requests", "3", "-o", path, "--no-save", "-q")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"totalRequests": 3`)
}

func TestLoadTest_ConfigFileWithOverride(t *testing.T) {
	svc, server := newModerationService(t)

	path := filepath.Join(t.TempDir(), "load.yaml")
	cfg := fmt.Sprintf("url: %s\nrequests: 5\nconcurrency: 1\nsaveMetrics: false\nheaders:\n  X-Tenant: acme\n", server.URL)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))

	stdout, _, err := execute(t, "--config", path, "--requests", "3", "--no-color")
	require.NoError(t, err)

	assert.Equal(t, int32(3), svc.moderate.Load(), "flag should override file")
	assert.Equal(t, int32(0), svc.calculate.Load(), "file disables the sink")
	assert.True(t, svc.tenants["acme"])
	assert.Contains(t, stdout, "Concurrency:     1")
}

func TestLoadTest_ValidateResponse(t *testing.T) {
	_, server := newModerationService(t)

	stdout, _, err := execute(t,
		"--url", server.URL,
		"--requests", "2",
		"--validate-response",
		"--json", "--no-save", "-q",
	)
	require.NoError(t, err)

	var summary metrics.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 0, summary.SchemaViolations)
	assert.Equal(t, 2, summary.SuccessCount)
}

func TestLoadTest_UnreachableTarget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	stdout, _, err := execute(t, "--url", url, "--requests", "3", "--no-color")
	require.NoError(t, err, "transport failures never fail the run")

	assert.Contains(t, stdout, "Failed:           3")
	assert.Contains(t, stdout, "Failed to save metrics")
}

func TestLoadTest_GeneratedRunID(t *testing.T) {
	svc, server := newModerationService(t)

	_, _, err := execute(t, "--url", server.URL, "--requests", "1", "-q")
	require.NoError(t, err)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.True(t, strings.HasPrefix(svc.sinkPath, "/api/v1/metrics/calculate/run-"), svc.sinkPath)
}
