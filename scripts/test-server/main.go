// Command test-server runs the mock moderation service for local load tests.
//
//	go run ./scripts/test-server --addr :8080 --error-rate 0.02
//	modload --url http://localhost:8080 --requests 500 --concurrency 50
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/modload/internal/mockserver"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	opts := mockserver.DefaultOptions()
	var addr string

	cmd := &cobra.Command{
		Use:          "test-server",
		Short:        "Mock moderation service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
				With().Timestamp().Logger()
			opts.Logger = logger

			server := &http.Server{
				Addr:              addr,
				Handler:           mockserver.New(opts).Handler(),
				ReadTimeout:       5 * time.Second,
				WriteTimeout:      35 * time.Second,
				IdleTimeout:       120 * time.Second,
				MaxHeaderBytes:    1 << 20,
				ReadHeaderTimeout: 2 * time.Second,
			}

			logger.Info().
				Str("addr", addr).
				Dur("min_latency", opts.MinLatency).
				Dur("max_latency", opts.MaxLatency).
				Float64("error_rate", opts.ErrorRate).
				Msg("starting mock moderation service")

			return server.ListenAndServe()
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8080", "Listen address")
	f.DurationVar(&opts.MinLatency, "min-latency", opts.MinLatency, "Minimum simulated processing time")
	f.DurationVar(&opts.MaxLatency, "max-latency", opts.MaxLatency, "Maximum simulated processing time")
	f.Float64Var(&opts.ErrorRate, "error-rate", 0, "Fraction of moderation calls answered with HTTP 500")
	f.Int64Var(&opts.Seed, "seed", 0, "Seed for latency and error sampling (0 = random)")

	return cmd
}
