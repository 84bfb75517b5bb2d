package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/vietddude/crosspost/internal/core/domain"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func newTestEngine(t *testing.T, policy Policy, rec *sleepRecorder, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithSleep(rec.sleep),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRand(func() float64 { return 0.5 }),
	}
	e, err := NewEngine(policy, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func statusErr(code int, header http.Header) error {
	return &domain.APIError{Platform: "test", StatusCode: code, Header: header, Message: http.StatusText(code)}
}

// failingOp fails with errs in order, then returns true.
func failingOp(calls *int, errs ...error) Operation {
	return func(ctx context.Context) (bool, error) {
		*calls++
		if *calls <= len(errs) {
			return false, errs[*calls-1]
		}
		return true, nil
	}
}

func TestExecute_RetriesTransientThenSucceeds(t *testing.T) {
	rec := &sleepRecorder{}
	e := newTestEngine(t, Policy{MaxAttempts: 3, BackoffBase: 5 * time.Second, MaxBackoff: 900 * time.Second}, rec)

	calls := 0
	res, err := e.Execute(context.Background(), "test", failingOp(&calls, statusErr(503, nil), statusErr(503, nil)))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.Posted || res.Skipped {
		t.Errorf("unexpected result: %+v", res)
	}
	if calls != 3 || res.Attempts != 3 {
		t.Errorf("calls = %d, attempts = %d, want 3", calls, res.Attempts)
	}
	if len(rec.waits) != 2 {
		t.Fatalf("expected exactly 2 sleeps, got %d", len(rec.waits))
	}
	// rand fixed at 0.5: attempt 0 -> 2.5s, attempt 1 -> 5s
	if rec.waits[0] != 2500*time.Millisecond || rec.waits[1] != 5*time.Second {
		t.Errorf("unexpected waits: %v", rec.waits)
	}
}

func TestExecute_SuccessFirstTry(t *testing.T) {
	rec := &sleepRecorder{}
	e := newTestEngine(t, DefaultPolicy, rec)

	calls := 0
	res, err := e.Execute(context.Background(), "test", failingOp(&calls))
	if err != nil || !res.Posted || res.Attempts != 1 {
		t.Fatalf("unexpected: res=%+v err=%v", res, err)
	}
	if len(rec.waits) != 0 {
		t.Errorf("expected no sleeps, got %v", rec.waits)
	}
}

func TestExecute_ImmediateActions(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantErr     bool
		wantSkipped bool
	}{
		{"stop on 400", statusErr(400, nil), true, false},
		{"stop on unknown", errors.New("weird failure"), true, false},
		{"refresh on 401", statusErr(401, nil), true, false},
		{"refresh on expired text", errors.New("access token expired"), true, false},
		{"skip on 413", statusErr(413, nil), false, true},
		{"skip on aspect ratio", errors.New("The aspect ratio is not supported"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &sleepRecorder{}
			e := newTestEngine(t, DefaultPolicy, rec)

			calls := 0
			res, err := e.Execute(context.Background(), "test", failingOp(&calls, tt.err, tt.err, tt.err))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, tt.err) {
				t.Errorf("expected original error to propagate, got %v", err)
			}
			if res.Skipped != tt.wantSkipped {
				t.Errorf("Skipped = %v, want %v", res.Skipped, tt.wantSkipped)
			}
			if res.Posted {
				t.Error("Posted should be false")
			}
			if calls != 1 {
				t.Errorf("expected 1 call, got %d", calls)
			}
			if len(rec.waits) != 0 {
				t.Errorf("expected no sleeps, got %v", rec.waits)
			}
		})
	}
}

func TestExecute_FalseIsNotRetried(t *testing.T) {
	rec := &sleepRecorder{}
	e := newTestEngine(t, DefaultPolicy, rec)

	calls := 0
	res, err := e.Execute(context.Background(), "test", func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Posted || res.Skipped || calls != 1 {
		t.Errorf("unexpected: res=%+v calls=%d", res, calls)
	}
}

func TestExecute_ExhaustsAttempts(t *testing.T) {
	rec := &sleepRecorder{}
	e := newTestEngine(t, Policy{MaxAttempts: 4, BackoffBase: time.Second, MaxBackoff: time.Minute}, rec)

	cause := errors.New("connection reset by peer")
	calls := 0
	_, err := e.Execute(context.Background(), "test", func(ctx context.Context) (bool, error) {
		calls++
		return false, cause
	})
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	if len(rec.waits) != 3 {
		t.Errorf("sleeps = %d, want 3", len(rec.waits))
	}
}

func TestExecute_WaitComputation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	header := func(v string) http.Header {
		h := http.Header{}
		h.Set("Retry-After", v)
		return h
	}

	tests := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"429 with delta", statusErr(429, header("12")), 13 * time.Second},
		{"429 without header", statusErr(429, nil), 31 * time.Second},
		{"429 garbage header", statusErr(429, header("soon")), 31 * time.Second},
		{"429 capped", statusErr(429, header("5000")), 901 * time.Second},
		{"429 http date", statusErr(429, header(now.Add(20*time.Second).Format(http.TimeFormat))), 21 * time.Second},
		{"503 with delta", statusErr(503, header("20")), 20 * time.Second},
		{"503 capped", statusErr(503, header("4000")), 900 * time.Second},
		{"503 huge delta capped", statusErr(503, header("18446744074")), 900 * time.Second},
		{"429 huge delta capped", statusErr(429, header("18446744074")), 901 * time.Second},
		{"503 jitter", statusErr(503, nil), 2500 * time.Millisecond},
		{"text timeout jitter", errors.New("timeout"), 2500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &sleepRecorder{}
			e := newTestEngine(t, Policy{MaxAttempts: 2, BackoffBase: 5 * time.Second, MaxBackoff: 900 * time.Second}, rec,
				WithClock(func() time.Time { return now }))

			calls := 0
			if _, err := e.Execute(context.Background(), "test", failingOp(&calls, tt.err)); err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if len(rec.waits) != 1 || rec.waits[0] != tt.want {
				t.Errorf("waits = %v, want [%v]", rec.waits, tt.want)
			}
		})
	}
}

func TestExecute_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e, err := NewEngine(Policy{MaxAttempts: 3, BackoffBase: time.Hour, MaxBackoff: time.Hour},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRand(func() float64 { return 0.99 }),
	)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := e.Execute(ctx, "test", func(ctx context.Context) (bool, error) {
			calls++
			return false, statusErr(503, nil)
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after cancel")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"default", DefaultPolicy, false},
		{"zero base", Policy{MaxAttempts: 1, BackoffBase: 0, MaxBackoff: 0}, false},
		{"no attempts", Policy{MaxAttempts: 0, BackoffBase: time.Second, MaxBackoff: time.Second}, true},
		{"negative base", Policy{MaxAttempts: 1, BackoffBase: -time.Second, MaxBackoff: time.Second}, true},
		{"cap below base", Policy{MaxAttempts: 1, BackoffBase: time.Minute, MaxBackoff: time.Second}, true},
	}
	for _, tt := range tests {
		if err := tt.policy.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
	if _, err := NewEngine(Policy{}); err == nil {
		t.Error("NewEngine should reject an invalid policy")
	}
}
