package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wesleyorama2/modload/internal/config"
)

// newLogger builds the diagnostics logger. Human readable results go to the
// console renderer; the logger carries everything else.
func newLogger(settings config.Settings, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if settings.LogLevel != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(settings.LogLevel))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("%w: unknown log level %q", config.ErrInvalidConfig, settings.LogLevel)
		}
		level = parsed
	}

	out := w
	if !strings.EqualFold(settings.LogFormat, "json") {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.TimeOnly,
			NoColor:    settings.NoColor,
		}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
