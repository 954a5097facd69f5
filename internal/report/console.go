// Package report renders and publishes run results.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/modload/internal/collector"
	"github.com/wesleyorama2/modload/internal/config"
	"github.com/wesleyorama2/modload/internal/metrics"
)

const ruleWidth = 60

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer      io.Writer
	Quiet       bool
	NoColor     bool
	ForceColors bool
	ForceTTY    bool
}

// Console writes the human readable run report.
//
// Progress lines are rewritten in place on a terminal and printed one per
// update otherwise. Console is safe for concurrent use.
type Console struct {
	mu     sync.Mutex
	writer io.Writer
	colors *ColorScheme
	isTTY  bool
	quiet  bool

	progressOpen bool
}

// NewConsole creates a console renderer.
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}

	isTTY := cfg.ForceTTY || isTerminal(cfg.Writer)
	useColors := !cfg.NoColor && (cfg.ForceColors || (isTTY && supportsColors()))

	colors := NoColorScheme()
	if useColors {
		colors = ForcedColorScheme()
	}

	return &Console{
		writer: cfg.Writer,
		colors: colors,
		isTTY:  isTTY,
		quiet:  cfg.Quiet,
	}
}

// IsTTY returns whether the output is a terminal.
func (c *Console) IsTTY() bool {
	return c.isTTY
}

// PrintHeader prints the run parameters before dispatch starts.
func (c *Console) PrintHeader(run config.RunContext) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rate := "Unlimited"
	if run.RateLimitPerSecond > 0 {
		rate = fmt.Sprintf("%d", run.RateLimitPerSecond)
	}

	c.writeln("")
	c.rule()
	c.writeln(c.colors.Title.Sprint("Starting Load Test"))
	c.rule()
	c.writeln("")
	c.field("Run ID:", c.colors.Value.Sprint(run.RunID), 17)
	c.field("Target URL:", run.BaseURL, 17)
	c.field("Total Requests:", fmt.Sprint(run.TotalRequests), 17)
	c.field("Concurrency:", fmt.Sprint(run.ConcurrencyLimit), 17)
	c.field("Rate Limit:", rate+" req/s", 17)
	c.writeln("")
	c.rule()
	c.writeln("")
}

// Progress renders a live progress update.
func (c *Console) Progress(s collector.Snapshot) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	line := fmt.Sprintf("Progress: %.1f%% (%d/%d)", s.Progress()*100, s.Completed, s.Total)
	if s.Completed > 0 {
		line += c.colors.Dim.Sprintf("  p50 %s  p95 %s  failed %d",
			formatLatency(s.LatencyP50), formatLatency(s.LatencyP95), s.Failed)
	}

	if c.isTTY {
		c.write("\r\033[2K" + line)
		c.progressOpen = true
		return
	}
	c.writeln(line)
}

// FinishProgress terminates the progress display. A run that completed
// fewer requests than planned is reported as interrupted.
func (c *Console) FinishProgress(completed, planned int) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progressOpen {
		c.write("\r\033[2K")
		c.progressOpen = false
	}
	s := collector.Snapshot{Completed: completed, Total: planned}
	c.writeln(fmt.Sprintf("Progress: %.1f%% (%d/%d)", s.Progress()*100, completed, planned))
	c.writeln("")
	if completed < planned {
		c.writeln(c.colors.Warn.Sprintf("Test interrupted: %d of %d requests were not sent", planned-completed, planned))
		return
	}
	c.writeln(c.colors.Success.Sprint("Test completed!"))
}

// PrintSummary prints the final statistics. Failures are always called out,
// and in quiet mode a single line is printed.
func (c *Console) PrintSummary(s metrics.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	successColor := c.colors.Success
	if s.SuccessRate < 95 {
		successColor = c.colors.Warn
	}
	failColor := c.colors.Label
	if s.FailCount > 0 {
		failColor = c.colors.Error
	}

	if c.quiet {
		c.writeln(fmt.Sprintf("%s: %d requests, %s ok, %s failed (%s), p95 %dms, %.2f req/s",
			s.RunID, s.TotalRequests,
			successColor.Sprint(s.SuccessCount),
			failColor.Sprint(s.FailCount),
			successColor.Sprintf("%.2f%%", s.SuccessRate),
			s.P95LatencyMs, s.ThroughputRps))
		return
	}

	c.writeln("")
	c.rule()
	c.writeln(c.colors.Title.Sprint("Test Results Summary"))
	c.rule()
	c.writeln("")
	c.field("Run ID:", c.colors.Highlight.Sprint(s.RunID), 18)
	c.field("Duration:", fmt.Sprintf("%.2fs", s.DurationSeconds), 18)
	c.field("Total Requests:", fmt.Sprint(s.TotalRequests), 18)
	c.field("Success:", successColor.Sprint(s.SuccessCount), 18)
	c.field("Failed:", failColor.Sprint(s.FailCount), 18)
	c.field("Success Rate:", successColor.Sprintf("%.2f%%", s.SuccessRate), 18)
	c.field("Failure Rate:", failColor.Sprintf("%.2f%%", s.FailureRate()), 18)

	c.writeln("")
	c.writeln(c.colors.Title.Sprint("Latency (ms):"))
	c.field("Min:", fmt.Sprint(s.MinLatencyMs), 18)
	c.field("Max:", fmt.Sprint(s.MaxLatencyMs), 18)
	c.field("Average:", fmt.Sprintf("%.2f", s.AvgLatencyMs), 18)
	c.field("P50:", fmt.Sprint(s.P50LatencyMs), 18)
	c.field("P95:", fmt.Sprint(s.P95LatencyMs), 18)
	c.field("P99:", fmt.Sprint(s.P99LatencyMs), 18)
	c.field("TTFB Average:", fmt.Sprintf("%.2f", s.AvgTTFBMs), 18)

	c.writeln("")
	c.writeln(c.colors.Title.Sprint("Throughput:"))
	c.field("Requests/sec:", c.colors.Success.Sprintf("%.2f", s.ThroughputRps), 18)

	if len(s.StatusCodes) > 0 {
		c.writeln("")
		c.writeln(c.colors.Title.Sprint("Status Codes:"))
		codes := make([]int, 0, len(s.StatusCodes))
		for code := range s.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			col := c.colors.Success
			if code != 200 {
				col = c.colors.Error
			}
			c.field(fmt.Sprintf("%d:", code), col.Sprint(s.StatusCodes[code]), 18)
		}
	}

	if len(s.Errors) > 0 {
		c.writeln("")
		c.writeln(c.colors.Error.Sprint("Errors:"))
		for _, e := range sortedCounts(s.Errors) {
			c.writeln(fmt.Sprintf("  %5d  %s", e.count, e.key))
		}
	}

	if len(s.RiskLevels) > 0 {
		c.writeln("")
		c.writeln(c.colors.Title.Sprint("Risk Levels:"))
		for _, r := range sortedCounts(s.RiskLevels) {
			c.field(r.key+":", fmt.Sprint(r.count), 18)
		}
	}

	if s.SchemaViolations > 0 {
		c.writeln("")
		c.writeln(c.colors.Warn.Sprintf("%d responses did not match the response schema", s.SchemaViolations))
	}

	c.writeln("")
	c.rule()
	c.writeln("")
}

// PrintSinkResult reports the outcome of publishing metrics.
func (c *Console) PrintSinkResult(err error) {
	if c.quiet && err == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.writeln(c.colors.Warn.Sprintf("⚠ Failed to save metrics: %v", err))
		return
	}
	c.writeln(c.colors.Success.Sprint("✓ Metrics saved via API"))
}

// PrintReportHint prints where the stored report can be fetched.
func (c *Console) PrintReportHint(baseURL, runID string) {
	if c.quiet {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeln("")
	c.writeln(c.colors.Value.Sprint("To view detailed report:"))
	c.writeln(fmt.Sprintf("  curl %s", ReportURL(baseURL, runID)))
	c.writeln("")
}

// PrintReport renders a report fetched from the metrics service.
func (c *Console) PrintReport(r *Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := r.Metrics

	c.rule()
	c.writeln(c.colors.Title.Sprintf("Stored Report: %s", r.RunID))
	c.rule()
	c.writeln("")
	c.field("Stored Results:", fmt.Sprint(r.TotalResults), 18)
	c.field("Total Requests:", fmt.Sprint(m.TotalRequests), 18)
	c.field("Success:", c.colors.Success.Sprint(m.SuccessCount), 18)
	failColor := c.colors.Label
	if m.FailCount > 0 {
		failColor = c.colors.Error
	}
	c.field("Failed:", failColor.Sprint(m.FailCount), 18)
	c.field("Success Rate:", fmt.Sprintf("%.2f%%", m.SuccessRate), 18)
	if m.Concurrency > 0 {
		c.field("Concurrency:", fmt.Sprint(m.Concurrency), 18)
	}
	c.field("Duration:", formatLatency(time.Duration(m.DurationMs)*time.Millisecond), 18)
	if m.StartTime != "" {
		c.field("Window:", m.StartTime+" .. "+m.EndTime, 18)
	}

	c.writeln("")
	c.writeln(c.colors.Title.Sprint("Latency (ms):"))
	c.field("Min:", fmt.Sprint(m.MinLatency), 18)
	c.field("Max:", fmt.Sprint(m.MaxLatency), 18)
	c.field("Average:", fmt.Sprint(m.AvgLatency), 18)
	c.field("P50:", fmt.Sprint(m.P50Latency), 18)
	c.field("P95:", fmt.Sprint(m.P95Latency), 18)
	c.field("P99:", fmt.Sprint(m.P99Latency), 18)
	c.writeln("")
	c.field("Requests/sec:", c.colors.Success.Sprintf("%.2f", m.ThroughputRps), 18)
	c.writeln("")
}

func (c *Console) rule() {
	c.writeln(c.colors.Rule.Sprint(strings.Repeat("=", ruleWidth)))
}

func (c *Console) field(label, value string, width int) {
	c.writeln(fmt.Sprintf("  %-*s%s", width, label, value))
}

// write writes to the output without a newline.
func (c *Console) write(s string) {
	fmt.Fprint(c.writer, s)
}

// writeln writes to the output with a newline.
func (c *Console) writeln(s string) {
	fmt.Fprintln(c.writer, s)
}

// formatLatency formats a duration in a short format.
func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

type keyCount struct {
	key   string
	count int
}

// sortedCounts orders a breakdown by count, then key.
func sortedCounts(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, v := range m {
		out = append(out, keyCount{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}
