package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wesleyorama2/modload/internal/config"
)

// resolveSettings merges defaults, the optional config file and the flags
// the user explicitly set, in that order, and validates the result.
//
// Flags that are not defined on cmd are skipped, so the same resolution
// serves every subcommand.
func resolveSettings(cmd *cobra.Command) (config.Settings, error) {
	flags := cmd.Flags()

	settings := config.Default()
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return settings, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
		}
		settings = loaded
	}

	applyString(flags, "url", &settings.URL)
	applyInt(flags, "requests", &settings.Requests)
	applyInt(flags, "concurrency", &settings.Concurrency)
	applyInt(flags, "rate-limit", &settings.RateLimit)
	applyString(flags, "run-id", &settings.RunID)
	applyString(flags, "pacing", &settings.Pacing)
	applyDuration(flags, "timeout", &settings.RequestTimeout)
	applyDuration(flags, "sink-timeout", &settings.SinkTimeout)
	applyBool(flags, "validate-response", &settings.ValidateResponses)
	applyString(flags, "response-schema", &settings.ResponseSchema)
	applyString(flags, "output", &settings.OutputPath)
	applyBool(flags, "json", &settings.JSONOutput)
	applyBool(flags, "quiet", &settings.Quiet)
	applyBool(flags, "no-color", &settings.NoColor)
	applyString(flags, "log-level", &settings.LogLevel)
	applyString(flags, "log-format", &settings.LogFormat)

	if flags.Changed("seed") {
		settings.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("no-save") {
		noSave, _ := flags.GetBool("no-save")
		settings.SaveMetrics = !noSave
	}
	if settings.ResponseSchema != "" {
		settings.ValidateResponses = true
	}

	if flags.Changed("header") {
		headers, _ := flags.GetStringArray("header")
		if settings.Headers == nil {
			settings.Headers = make(map[string]string, len(headers))
		}
		for _, header := range headers {
			parts := strings.SplitN(header, ":", 2)
			if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
				return settings, fmt.Errorf("%w: invalid header %q (expected 'Key: Value')", config.ErrInvalidConfig, header)
			}
			settings.Headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	if settings.RunID == "" {
		settings.RunID = config.NewRunID(time.Now())
	}

	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

func applyString(flags *pflag.FlagSet, name string, dst *string) {
	if flags.Changed(name) {
		*dst, _ = flags.GetString(name)
	}
}

func applyInt(flags *pflag.FlagSet, name string, dst *int) {
	if flags.Changed(name) {
		*dst, _ = flags.GetInt(name)
	}
}

func applyBool(flags *pflag.FlagSet, name string, dst *bool) {
	if flags.Changed(name) {
		*dst, _ = flags.GetBool(name)
	}
}

func applyDuration(flags *pflag.FlagSet, name string, dst *config.Duration) {
	if flags.Changed(name) {
		d, _ := flags.GetDuration(name)
		*dst = config.Duration(d)
	}
}
