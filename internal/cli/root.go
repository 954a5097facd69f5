package cli

import (
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/modload/internal/config"
	"github.com/wesleyorama2/modload/internal/pacer"
)

var version = "0.1.0"

// NewRootCmd builds the modload command tree. Running the root command
// without a subcommand starts a load test.
func NewRootCmd() *cobra.Command {
	defaults := config.Default()

	rootCmd := &cobra.Command{
		Use:     "modload",
		Short:   "Load generator for the content moderation API",
		Version: version,
		Long: `modload drives concurrent POST /api/v1/moderate requests against a
moderation service, measures latency and outcomes, and prints a summary
with throughput and percentile latencies.

Quick run:
  modload --url http://localhost:8080 --requests 500 --concurrency 50 --rate-limit 100

From a config file (flags override file values):
  modload --config load.yaml --concurrency 20

Inspect a stored run:
  modload report run-20240101-120000-1a2b3c4d`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runLoadTest,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("url", defaults.URL, "Base URL of the moderation service")
	pf.StringP("config", "c", "", "Configuration file (YAML or JSON)")
	pf.BoolP("quiet", "q", false, "Disable progress output, show only a one-line summary")
	pf.Bool("no-color", false, "Disable colored output")
	pf.Bool("json", false, "Write the summary as JSON to stdout")
	pf.String("log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	pf.String("log-format", defaults.LogFormat, "Log format: console or json")
	pf.StringArrayP("header", "H", []string{}, "HTTP headers to include (can be used multiple times)")

	f := rootCmd.Flags()
	f.Int("requests", defaults.Requests, "Total number of requests to send")
	f.Int("concurrency", defaults.Concurrency, "Maximum number of requests in flight")
	f.Int("rate-limit", defaults.RateLimit, "Maximum submissions per second (0 = unlimited)")
	f.String("run-id", "", "Run identifier (default: run-<timestamp>-<random hex>)")
	f.String("pacing", defaults.Pacing, "Rate limiter, one of: "+pacer.Names())
	f.DurationP("timeout", "t", defaults.RequestTimeout.Std(), "Timeout for each moderation request")
	f.Duration("sink-timeout", defaults.SinkTimeout.Std(), "Timeout for the metrics sink call")
	f.Bool("no-save", false, "Do not post the run to the metrics service")
	f.Bool("validate-response", false, "Validate 200 responses against the moderation response schema")
	f.String("response-schema", "", "Custom JSON schema for responses (implies --validate-response)")
	f.StringP("output", "o", "", "Write the JSON summary to this file")
	f.Int64("seed", 0, "Seed for payload text selection (0 = random)")

	rootCmd.AddCommand(newReportCmd())

	return rootCmd
}

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}
