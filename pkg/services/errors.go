package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured is returned when a backend is used without a base URL.
var ErrNotConfigured = errors.New("services: backend not configured")

// StatusError reports a non-2xx response from a backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e == nil {
		return ""
	}
	if e.Body == "" {
		return fmt.Sprintf("services: unexpected status %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("services: unexpected status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the request may succeed when retried.
func (e *StatusError) Temporary() bool {
	if e == nil {
		return false
	}
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}
