// Package config holds run configuration for modload.
//
// Settings can come from flags, from a YAML or JSON file, or both. The
// immutable RunContext derived from Settings is shared by every worker for
// the lifetime of a run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/modload/internal/pacer"
)

// Defaults for the command line contract.
const (
	DefaultURL            = "http://localhost:8080"
	DefaultRequests       = 10
	DefaultConcurrency    = 2
	DefaultRateLimit      = 0
	DefaultRequestTimeout = 30 * time.Second
	DefaultSinkTimeout    = 10 * time.Second
)

// RunContext is the read-only description of one run.
type RunContext struct {
	RunID              string `json:"runId" yaml:"runId"`
	BaseURL            string `json:"baseUrl" yaml:"baseUrl"`
	ConcurrencyLimit   int    `json:"concurrencyLimit" yaml:"concurrencyLimit"`
	TotalRequests      int    `json:"totalRequests" yaml:"totalRequests"`
	RateLimitPerSecond int    `json:"rateLimitPerSecond" yaml:"rateLimitPerSecond"`
}

// Settings is the full configuration accepted by the CLI.
//
// Example YAML:
//
//	url: http://localhost:8080
//	requests: 500
//	concurrency: 50
//	rateLimit: 50
//	pacing: fixed
//	timeout: 30s
type Settings struct {
	URL         string `json:"url" yaml:"url"`
	Requests    int    `json:"requests" yaml:"requests"`
	Concurrency int    `json:"concurrency" yaml:"concurrency"`
	RateLimit   int    `json:"rateLimit" yaml:"rateLimit"`
	RunID       string `json:"runId,omitempty" yaml:"runId,omitempty"`

	// Pacing selects the rate limiter: fixed, leaky or token
	Pacing string `json:"pacing,omitempty" yaml:"pacing,omitempty"`

	// RequestTimeout bounds each moderation call
	RequestTimeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// SinkTimeout bounds the metrics sink call
	SinkTimeout Duration `json:"sinkTimeout,omitempty" yaml:"sinkTimeout,omitempty"`

	// SaveMetrics posts the run to the metrics sink when true
	SaveMetrics bool `json:"saveMetrics" yaml:"saveMetrics"`

	// ValidateResponses checks 200 bodies against the response schema
	ValidateResponses bool `json:"validateResponses,omitempty" yaml:"validateResponses,omitempty"`

	// ResponseSchema is a path to a custom JSON schema (implies ValidateResponses)
	ResponseSchema string `json:"responseSchema,omitempty" yaml:"responseSchema,omitempty"`

	// Seed fixes the payload text sequence; 0 means random
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Output
	JSONOutput bool   `json:"json,omitempty" yaml:"json,omitempty"`
	OutputPath string `json:"output,omitempty" yaml:"output,omitempty"`
	Quiet      bool   `json:"quiet,omitempty" yaml:"quiet,omitempty"`
	NoColor    bool   `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	LogLevel   string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	LogFormat  string `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`
}

// Default returns Settings populated with the documented defaults.
func Default() Settings {
	return Settings{
		URL:            DefaultURL,
		Requests:       DefaultRequests,
		Concurrency:    DefaultConcurrency,
		RateLimit:      DefaultRateLimit,
		Pacing:         string(pacer.KindFixed),
		RequestTimeout: Duration(DefaultRequestTimeout),
		SinkTimeout:    Duration(DefaultSinkTimeout),
		SaveMetrics:    true,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Load reads settings from a file on top of the defaults.
//
// The format is chosen by extension: .json is JSON, anything else is YAML.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes settings data on top of the defaults. path is only used to
// pick the format.
func Parse(data []byte, path string) (Settings, error) {
	s := Default()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	return s, nil
}

// RunContext derives the immutable run description. The run ID must already
// be set.
func (s Settings) RunContext() RunContext {
	return RunContext{
		RunID:              s.RunID,
		BaseURL:            strings.TrimRight(s.URL, "/"),
		ConcurrencyLimit:   s.Concurrency,
		TotalRequests:      s.Requests,
		RateLimitPerSecond: s.RateLimit,
	}
}

// PacingKind returns the parsed pacing strategy.
func (s Settings) PacingKind() (pacer.Kind, error) {
	return pacer.ParseKind(s.Pacing)
}

// Duration is a time.Duration that unmarshals from "30s"-style strings.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	return d.set(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Value == "" {
		*d = 0
		return nil
	}
	return d.set(value.Value)
}

func (d *Duration) set(s string) error {
	dur, err := time.ParseDuration(s)
	if err != nil {
		// Bare integers are seconds.
		var seconds int
		if _, scanErr := fmt.Sscanf(s, "%d", &seconds); scanErr != nil || fmt.Sprint(seconds) != s {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		dur = time.Duration(seconds) * time.Second
	}
	*d = Duration(dur)
	return nil
}
