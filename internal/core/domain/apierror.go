package domain

import (
	"fmt"
	"net/http"
)

// APIError is returned by publishers when a platform rejects a request.
// StatusCode is zero when no HTTP response was received.
type APIError struct {
	Platform   Platform
	StatusCode int
	Header     http.Header
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Platform, e.Message)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Platform, e.StatusCode, e.Message)
}
