package retry

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/vietddude/crosspost/internal/core/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		msg    string
		code   int
		expect Action
	}{
		// status codes
		{"", 401, ActionRefresh},
		{"", 413, ActionSkip},
		{"", 415, ActionSkip},
		{"", 422, ActionSkip},
		{"", 429, ActionRetry},
		{"", 500, ActionRetry},
		{"", 502, ActionRetry},
		{"", 503, ActionRetry},
		{"", 504, ActionRetry},
		{"", 400, ActionStop},
		{"", 403, ActionStop},
		{"", 404, ActionStop},
		{"", 405, ActionStop},

		// message text, case-insensitive
		{"Invalid Bot Token (401)", 0, ActionRefresh},
		{"Unauthorized", 0, ActionRefresh},
		{"session has EXPIRED", 0, ActionRefresh},
		{"error: token invalid", 0, ActionRefresh},
		{"Payload Too Large", 0, ActionSkip},
		{"unsupported media type", 0, ActionSkip},
		{"bad aspect ratio", 0, ActionSkip},
		{"Invalid Format", 0, ActionSkip},
		{"Connection Timed Out: timeout", 0, ActionRetry},
		{"connection reset by peer", 0, ActionRetry},
		{"please try again later", 0, ActionRetry},
		{"Rate Limit reached", 0, ActionRetry},
		{"Forbidden", 0, ActionStop},

		// defaults and precedence
		{"something odd happened", 0, ActionStop},
		{"", 0, ActionStop},
		{"", 418, ActionStop},
		{"rate limit exceeded", 401, ActionRefresh},
		{"payload too large", 503, ActionSkip},
		{"timeout", 413, ActionSkip},
		{"forbidden", 429, ActionRetry},
		{"expired", 422, ActionRefresh},
		{"unknown", 500, ActionRetry},
	}

	for _, tt := range tests {
		if got := Classify(tt.msg, tt.code); got != tt.expect {
			t.Errorf("Classify(%q, %d) = %v, want %v", tt.msg, tt.code, got, tt.expect)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		if got := Classify("Rate limit exceeded", 401); got != ActionRefresh {
			t.Fatalf("iteration %d: got %v, want REFRESH", i, got)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o deadline reached" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestSignalFrom(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	apiErr := &domain.APIError{
		Platform:   domain.PlatformDiscord,
		StatusCode: 429,
		Header:     h,
		Message:    "slow down",
	}

	sig := SignalFrom(fmt.Errorf("post image: %w", apiErr))
	if sig.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", sig.StatusCode)
	}
	if sig.Header.Get("Retry-After") != "7" {
		t.Errorf("Retry-After = %q, want 7", sig.Header.Get("Retry-After"))
	}
	if sig.Classify() != ActionRetry {
		t.Errorf("Classify = %v, want RETRY", sig.Classify())
	}

	plain := SignalFrom(errors.New("boom"))
	if plain.StatusCode != 0 || plain.Header != nil {
		t.Errorf("plain error should carry no status or headers: %+v", plain)
	}

	timeout := SignalFrom(fmt.Errorf("upload: %w", timeoutErr{}))
	if timeout.Classify() != ActionRetry {
		t.Errorf("net timeout should classify as RETRY, got %v (%q)", timeout.Classify(), timeout.Message)
	}
}
