package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/crosspost/internal/delivery/metrics"
)

const (
	// rateLimitDefaultWait applies to a 429 without a usable Retry-After.
	rateLimitDefaultWait = 30 * time.Second
	// rateLimitPad is added on top of every 429 wait.
	rateLimitPad = time.Second
)

// Policy defines retry behavior for one run.
type Policy struct {
	MaxAttempts int
	BackoffBase time.Duration
	MaxBackoff  time.Duration
}

// DefaultPolicy provides sensible defaults.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BackoffBase: 5 * time.Second,
	MaxBackoff:  900 * time.Second,
}

// Validate checks the policy invariants.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.BackoffBase < 0 {
		return fmt.Errorf("backoff base must be >= 0, got %s", p.BackoffBase)
	}
	if p.MaxBackoff < p.BackoffBase {
		return fmt.Errorf("max backoff %s must be >= backoff base %s", p.MaxBackoff, p.BackoffBase)
	}
	return nil
}

// Operation is a single publish call. A false result without an error is an
// ordinary failure and is never retried.
type Operation func(ctx context.Context) (bool, error)

// Result is the outcome of Execute when no error is returned.
type Result struct {
	Posted   bool
	Skipped  bool
	Attempts int
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Engine wraps publish calls with classification-driven retries.
type Engine struct {
	policy Policy
	log    *slog.Logger
	sleep  SleepFunc
	now    func() time.Time
	rnd    func() float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithSleep replaces the wait implementation.
func WithSleep(fn SleepFunc) Option {
	return func(e *Engine) { e.sleep = fn }
}

// WithClock replaces the clock used for Retry-After dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand replaces the jitter source; fn must return values in [0,1).
func WithRand(fn func() float64) Option {
	return func(e *Engine) { e.rnd = fn }
}

// NewEngine creates an engine for the given policy.
func NewEngine(policy Policy, opts ...Option) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		policy: policy,
		log:    slog.Default().With("component", "retry"),
		sleep:  Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Execute runs op until it succeeds, returns false, or the classifier ends
// the loop. STOP, REFRESH and exhausted retries return the last error. SKIP
// returns a Result with Skipped set and no error.
func (e *Engine) Execute(ctx context.Context, name string, op Operation) (Result, error) {
	var res Result

	for attempt := 0; attempt < e.policy.MaxAttempts; attempt++ {
		res.Attempts = attempt + 1

		ok, err := op(ctx)
		if err == nil {
			res.Posted = ok
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, errors.Join(err, ctxErr)
		}

		sig := SignalFrom(err)
		action := sig.Classify()
		metrics.RetryDecisions.WithLabelValues(name, action.String()).Inc()

		switch action {
		case ActionStop:
			e.log.Error("Permanent error, stopping", "target", name, "attempt", res.Attempts, "error", err)
			return res, err

		case ActionRefresh:
			e.log.Error("Credentials rejected, refresh them manually",
				"target", name,
				"severity", "critical",
				"status", sig.StatusCode,
				"error", err,
			)
			return res, err

		case ActionSkip:
			e.log.Warn("Media rejected, skipping", "target", name, "status", sig.StatusCode, "error", err)
			res.Skipped = true
			return res, nil
		}

		if attempt == e.policy.MaxAttempts-1 {
			e.log.Error("Max retries reached", "target", name, "attempts", res.Attempts, "error", err)
			return res, fmt.Errorf("failed after %d attempts: %w", res.Attempts, err)
		}

		wait := e.waitFor(attempt, sig)
		e.log.Warn("Transient error, retrying",
			"target", name,
			"attempt", res.Attempts,
			"max_attempts", e.policy.MaxAttempts,
			"status", sig.StatusCode,
			"wait", wait.Round(100*time.Millisecond),
			"error", err,
		)
		metrics.RetryWaitSeconds.WithLabelValues(name).Observe(wait.Seconds())

		if err := e.sleep(ctx, wait); err != nil {
			return res, err
		}
	}

	// unreachable: the loop always returns on its last attempt
	return res, nil
}

func (e *Engine) waitFor(attempt int, sig Signal) time.Duration {
	retryAfter, hasRetryAfter := ParseRetryAfter(sig.Header.Get("Retry-After"), e.now())

	if sig.StatusCode == http.StatusTooManyRequests {
		wait := rateLimitDefaultWait
		if hasRetryAfter {
			wait = retryAfter
		}
		return min(wait, e.policy.MaxBackoff) + rateLimitPad
	}
	if hasRetryAfter {
		return min(retryAfter, e.policy.MaxBackoff)
	}
	return FullJitter(attempt, e.policy.BackoffBase, e.policy.MaxBackoff, e.rnd)
}

// Sleep waits for d, returning early with ctx.Err() if ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
