package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/wesleyorama2/modload/internal/pacer"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Is reports ErrInvalidConfig so callers can use errors.Is.
func (e *ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate checks the settings before any network activity happens.
//
// Returns nil if valid, or a *ValidationErrors listing every problem.
func (s Settings) Validate() error {
	errs := &ValidationErrors{}

	validateURL(s.URL, errs)

	if s.Requests < 0 {
		errs.Add("requests", fmt.Sprintf("must be >= 0, got %d", s.Requests))
	}
	if s.Concurrency <= 0 {
		errs.Add("concurrency", fmt.Sprintf("must be > 0, got %d", s.Concurrency))
	}
	if s.RateLimit < 0 {
		errs.Add("rateLimit", fmt.Sprintf("must be >= 0 (0 = unlimited), got %d", s.RateLimit))
	}
	if s.RequestTimeout <= 0 {
		errs.Add("timeout", "must be positive")
	}
	if s.SinkTimeout <= 0 {
		errs.Add("sinkTimeout", "must be positive")
	}
	if _, err := pacer.ParseKind(s.Pacing); err != nil {
		errs.Add("pacing", err.Error())
	}

	switch strings.ToLower(s.LogFormat) {
	case "", "console", "json":
	default:
		errs.Add("logFormat", fmt.Sprintf("unknown format %q (expected console or json)", s.LogFormat))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateURL(raw string, errs *ValidationErrors) {
	if raw == "" {
		errs.Add("url", "url is required")
		return
	}
	u, err := url.Parse(raw)
	if err != nil {
		errs.Add("url", fmt.Sprintf("invalid url: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		errs.Add("url", fmt.Sprintf("scheme must be http or https, got %q", u.Scheme))
	}
	if u.Host == "" {
		errs.Add("url", "host is required")
	}
}
