package cli

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/modload/internal/config"
	"github.com/wesleyorama2/modload/internal/engine"
	"github.com/wesleyorama2/modload/internal/http"
	"github.com/wesleyorama2/modload/internal/metrics"
	"github.com/wesleyorama2/modload/internal/pacer"
	"github.com/wesleyorama2/modload/internal/payload"
	"github.com/wesleyorama2/modload/internal/report"
	"github.com/wesleyorama2/modload/internal/schema"
)

// runLoadTest executes one load test run.
//
// Only configuration problems produce an error. Failed requests, an
// unreachable metrics service or an unwritable output file are reported and
// the run still completes.
func runLoadTest(cmd *cobra.Command, _ []string) error {
	settings, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(settings, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	validator, err := responseValidator(settings)
	if err != nil {
		return err
	}
	if validator != nil {
		logger.Debug().Str("schema", validator.Name()).Msg("response validation enabled")
	}

	kind, err := settings.PacingKind()
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	run := settings.RunContext()

	seed := settings.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	payloads, err := payload.Generate(run.TotalRequests, run.RunID, rand.New(rand.NewSource(seed)))
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	// Keep stdout clean for the JSON document.
	consoleOut := cmd.OutOrStdout()
	if settings.JSONOutput {
		consoleOut = cmd.ErrOrStderr()
	}
	console := report.NewConsole(report.ConsoleConfig{
		Writer:  consoleOut,
		Quiet:   settings.Quiet,
		NoColor: settings.NoColor,
	})

	target := http.NewClient(
		http.WithBaseURL(run.BaseURL),
		http.WithTimeout(settings.RequestTimeout.Std()),
		http.WithHeader("User-Agent", "modload/"+version),
		http.WithHeaders(settings.Headers),
		http.WithMaxConnsPerHost(run.ConcurrencyLimit),
	)

	opts := []engine.Option{
		engine.WithConcurrency(run.ConcurrencyLimit),
		engine.WithPacer(pacer.New(kind, run.RateLimitPerSecond)),
		engine.WithRequestTimeout(settings.RequestTimeout.Std()),
		engine.WithProgress(console.Progress),
		engine.WithLogger(logger),
	}
	if validator != nil {
		opts = append(opts, engine.WithResponseValidator(validator))
	}

	logger.Info().
		Str("run_id", run.RunID).
		Str("url", run.BaseURL).
		Int("requests", run.TotalRequests).
		Int("concurrency", run.ConcurrencyLimit).
		Int("rate_limit", run.RateLimitPerSecond).
		Str("pacing", string(kind)).
		Msg("load test started")

	console.PrintHeader(run)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := engine.New(target, opts...).Run(ctx, payloads)
	if result == nil {
		return runErr
	}
	if runErr != nil {
		logger.Warn().Err(runErr).Msg("run interrupted, reporting partial results")
	}

	console.FinishProgress(len(result.Records), run.TotalRequests)

	summary := metrics.Aggregate(result.Records, run, result.Duration.Seconds()).
		WithWindow(result.Start, result.End)

	logger.Info().
		Str("run_id", summary.RunID).
		Int("success", summary.SuccessCount).
		Int("failed", summary.FailCount).
		Int64("p95_ms", summary.P95LatencyMs).
		Float64("rps", summary.ThroughputRps).
		Msg("load test finished")

	console.PrintSummary(summary)
	exportSummary(cmd, settings, summary, logger)

	if settings.SaveMetrics {
		publishSummary(cmd.Context(), settings, summary, console, logger)
	}

	console.PrintReportHint(run.BaseURL, run.RunID)
	return nil
}

func responseValidator(settings config.Settings) (*schema.Validator, error) {
	if !settings.ValidateResponses {
		return nil, nil
	}
	if settings.ResponseSchema != "" {
		v, err := schema.Load(settings.ResponseSchema)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		return v, nil
	}
	return schema.NewModerationValidator()
}

func exportSummary(cmd *cobra.Command, settings config.Settings, summary metrics.Summary, logger zerolog.Logger) {
	if settings.JSONOutput {
		if err := report.WriteJSON(cmd.OutOrStdout(), summary); err != nil {
			logger.Error().Err(err).Msg("failed to write JSON summary")
		}
	}
	if settings.OutputPath != "" {
		if err := report.WriteJSONFile(settings.OutputPath, summary); err != nil {
			logger.Error().Err(err).Str("path", settings.OutputPath).Msg("failed to write summary file")
			return
		}
		logger.Info().Str("path", settings.OutputPath).Msg("summary written")
	}
}

func publishSummary(ctx context.Context, settings config.Settings, summary metrics.Summary, console *report.Console, logger zerolog.Logger) {
	client := http.NewClient(
		http.WithBaseURL(settings.RunContext().BaseURL),
		http.WithTimeout(settings.SinkTimeout.Std()),
		http.WithHeader("User-Agent", "modload/"+version),
		http.WithHeaders(settings.Headers),
	)

	stored, err := report.NewHTTPSink(client).Publish(ctx, summary)
	console.PrintSinkResult(err)
	if err != nil {
		logger.Warn().Err(err).Str("run_id", summary.RunID).Msg("failed to save metrics")
		return
	}
	logger.Debug().
		Str("run_id", stored.RunID).
		Int64("stored_requests", stored.TotalRequests).
		Int64("stored_p95_ms", stored.P95Latency).
		Msg("metrics saved")
}
