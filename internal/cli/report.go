package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/modload/internal/http"
	"github.com/wesleyorama2/modload/internal/report"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <runId>",
		Short: "Fetch the stored report of a run from the metrics service",
		Long: `Fetch GET /api/v1/metrics/report/{runId} from the moderation service
and render it. With --json the report is printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: runReport,
	}
}

func runReport(cmd *cobra.Command, args []string) error {
	settings, err := resolveSettings(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(settings, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	runID := args[0]
	client := http.NewClient(
		http.WithBaseURL(settings.RunContext().BaseURL),
		http.WithTimeout(settings.SinkTimeout.Std()),
		http.WithHeader("User-Agent", "modload/"+version),
		http.WithHeaders(settings.Headers),
	)

	r, err := report.FetchReport(cmd.Context(), client, runID)
	if err != nil {
		logger.Error().Err(err).Str("run_id", runID).Msg("failed to fetch report")
		return err
	}

	if settings.JSONOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	report.NewConsole(report.ConsoleConfig{
		Writer:  cmd.OutOrStdout(),
		NoColor: settings.NoColor,
	}).PrintReport(r)
	return nil
}
