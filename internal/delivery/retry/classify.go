package retry

import (
	"errors"
	"net"
	"net/http"
	"slices"
	"strings"

	"github.com/vietddude/crosspost/internal/core/domain"
)

// Action determines how the engine handles a failed attempt.
type Action int

const (
	ActionRetry Action = iota
	ActionStop
	ActionSkip
	ActionRefresh
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "RETRY"
	case ActionStop:
		return "STOP"
	case ActionSkip:
		return "SKIP"
	case ActionRefresh:
		return "REFRESH"
	default:
		return "UNKNOWN"
	}
}

var (
	refreshCodes    = []int{http.StatusUnauthorized}
	refreshTriggers = []string{"401", "unauthorized", "expired", "token invalid"}

	skipCodes = []int{
		http.StatusRequestEntityTooLarge,
		http.StatusUnsupportedMediaType,
		http.StatusUnprocessableEntity,
	}
	skipTriggers = []string{"payload too large", "unsupported media", "aspect ratio", "invalid format"}

	retryCodes = []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
	retryTriggers = []string{"timeout", "connection reset", "try again", "rate limit"}

	stopCodes = []int{
		http.StatusBadRequest,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusMethodNotAllowed,
	}
	stopTriggers = []string{"forbidden"}
)

// Classify maps an error message and optional status code (0 = absent) to an
// Action. Rules are evaluated in order and the first match wins, so an
// expired credential is never retried and a rejected file is never retried.
// Anything unrecognised stops.
func Classify(message string, statusCode int) Action {
	msg := strings.ToLower(message)

	switch {
	case matches(msg, statusCode, refreshCodes, refreshTriggers):
		return ActionRefresh
	case matches(msg, statusCode, skipCodes, skipTriggers):
		return ActionSkip
	case matches(msg, statusCode, retryCodes, retryTriggers):
		return ActionRetry
	case matches(msg, statusCode, stopCodes, stopTriggers):
		return ActionStop
	}
	return ActionStop
}

func matches(msg string, code int, codes []int, triggers []string) bool {
	if code != 0 && slices.Contains(codes, code) {
		return true
	}
	for _, t := range triggers {
		if strings.Contains(msg, t) {
			return true
		}
	}
	return false
}

// Signal is the classifier input extracted from a failed attempt.
type Signal struct {
	Message    string
	StatusCode int
	Header     http.Header
}

// SignalFrom extracts the status code and headers carried by a
// *domain.APIError anywhere in err's chain. Network timeouts that do not say
// so in their text are tagged so they classify as transient.
func SignalFrom(err error) Signal {
	if err == nil {
		return Signal{}
	}
	sig := Signal{Message: err.Error()}

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		sig.StatusCode = apiErr.StatusCode
		sig.Header = apiErr.Header
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() &&
		!strings.Contains(strings.ToLower(sig.Message), "timeout") {
		sig.Message += " (timeout)"
	}
	return sig
}

// Classify is a convenience for Classify(s.Message, s.StatusCode).
func (s Signal) Classify() Action {
	return Classify(s.Message, s.StatusCode)
}
