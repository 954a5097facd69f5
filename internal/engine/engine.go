// Package engine dispatches moderation requests through a bounded worker
// pool and collects one outcome per request.
//
// The dispatcher asks the pacer for permission before every submission and
// then hands the payload to an errgroup limited to the concurrency bound, so
// at no instant are more than that many calls in flight. Per-request errors
// become outcome records; Run itself only fails on configuration errors or
// when the dispatcher is interrupted.
//
// Example usage:
//
//	client := http.NewClient(http.WithBaseURL(run.BaseURL))
//	eng := engine.New(client,
//		engine.WithConcurrency(run.ConcurrencyLimit),
//		engine.WithPacer(pacer.New(pacer.KindFixed, run.RateLimitPerSecond)),
//	)
//	result, err := eng.Run(ctx, payloads)
package engine

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/modload/internal/collector"
	"github.com/wesleyorama2/modload/internal/http"
	"github.com/wesleyorama2/modload/internal/outcome"
	"github.com/wesleyorama2/modload/internal/pacer"
	"github.com/wesleyorama2/modload/internal/payload"
)

// ModeratePath is the target endpoint, relative to the base URL.
const ModeratePath = "/api/v1/moderate"

// DefaultRequestTimeout bounds each moderation call.
const DefaultRequestTimeout = 30 * time.Second

// ErrInvalidConcurrency is returned by Run when the concurrency bound is not
// positive. No request is sent in that case.
var ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")

// Doer executes a single HTTP exchange. *http.Client satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ResponseValidator checks a successful response body.
type ResponseValidator interface {
	Validate(body []byte) error
}

// ProgressFunc receives a live snapshot at the collector's progress cadence.
type ProgressFunc func(collector.Snapshot)

// Engine runs a batch of payloads against the moderation endpoint.
type Engine struct {
	client         Doer
	concurrency    int
	pacer          pacer.Pacer
	progress       ProgressFunc
	validator      ResponseValidator
	requestTimeout time.Duration
	logger         zerolog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithConcurrency sets the maximum number of in-flight requests.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// WithPacer sets the submission pacer. nil means unlimited.
func WithPacer(p pacer.Pacer) Option {
	return func(e *Engine) {
		if p == nil {
			p = pacer.Unlimited{}
		}
		e.pacer = p
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithResponseValidator validates every 200 response body. Violations are
// recorded on the outcome and never turn a success into a failure.
func WithResponseValidator(v ResponseValidator) Option {
	return func(e *Engine) {
		e.validator = v
	}
}

// WithRequestTimeout bounds each moderation call.
func WithRequestTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.requestTimeout = d
		}
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine that sends requests through client.
func New(client Doer, opts ...Option) *Engine {
	e := &Engine{
		client:         client,
		concurrency:    1,
		pacer:          pacer.Unlimited{},
		requestTimeout: DefaultRequestTimeout,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the raw output of one run.
type Result struct {
	Records  []outcome.Record
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// Run dispatches every payload and waits for all of them to complete.
//
// Exactly one record is produced per dispatched payload, in completion
// order. If ctx ends while the dispatcher is waiting on the pacer, no
// further payloads are submitted; requests already in flight still run to
// completion and the partial Result is returned together with the context
// error.
func (e *Engine) Run(ctx context.Context, payloads []payload.Payload) (*Result, error) {
	if e.concurrency <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, e.concurrency)
	}

	var col *collector.Collector
	var progress collector.ProgressFunc
	if e.progress != nil {
		progress = func(int, int) { e.progress(col.Snapshot()) }
	}
	col = collector.New(len(payloads), progress)

	e.logger.Debug().
		Int("requests", len(payloads)).
		Int("concurrency", e.concurrency).
		Msg("dispatch started")

	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)

	start := time.Now()
	var dispatchErr error
	dispatched := 0
	for _, p := range payloads {
		if err := e.pacer.Wait(ctx); err != nil {
			dispatchErr = err
			break
		}
		g.Go(func() error {
			col.Add(e.execute(ctx, p))
			return nil
		})
		dispatched++
	}
	_ = g.Wait()
	end := time.Now()

	result := &Result{
		Records:  col.Records(),
		Start:    start,
		End:      end,
		Duration: end.Sub(start),
	}

	e.logger.Debug().
		Int("completed", len(result.Records)).
		Dur("duration", result.Duration).
		Msg("dispatch finished")

	if dispatchErr != nil {
		return result, fmt.Errorf("dispatch stopped after %d of %d requests: %w", dispatched, len(payloads), dispatchErr)
	}
	return result, nil
}

// execute sends one payload and converts whatever happens into a record.
func (e *Engine) execute(ctx context.Context, p payload.Payload) outcome.Record {
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.requestTimeout)
	defer cancel()

	req := http.NewRequest(nethttp.MethodPost, ModeratePath).WithBody(p)

	start := time.Now()
	resp, err := e.client.Do(reqCtx, req)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		e.logger.Debug().Err(err).Str("request_id", p.ID).Msg("request failed")
		return outcome.TransportFailure(p.ID, latency, err)
	}

	ttfb := resp.Timing.TimeToFirstByte.Milliseconds()

	if !resp.IsOK() {
		e.logger.Debug().Int("status", resp.StatusCode).Str("request_id", p.ID).Msg("unexpected status")
		rec := outcome.HTTPFailure(p.ID, latency, resp.StatusCode)
		rec.TTFBMs = ttfb
		return rec
	}

	rec := outcome.Succeeded(p.ID, latency, resp.Body)
	rec.TTFBMs = ttfb
	if e.validator != nil {
		if err := e.validator.Validate(resp.Body); err != nil {
			rec.SchemaError = err.Error()
		}
	}
	return rec
}
