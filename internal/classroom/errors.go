// Package classroom provides an HTTP client for the Google Classroom and
// OAuth2 identity APIs with retry, error classification, and full
// pagination of list endpoints.
package classroom

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, classroom.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("classroom: bad request")
	ErrUnauthorized = errors.New("classroom: unauthorized")
	ErrForbidden    = errors.New("classroom: forbidden")
	ErrNotFound     = errors.New("classroom: not found")
	ErrThrottled    = errors.New("classroom: throttled")
	ErrServerError  = errors.New("classroom: server error")
)

// APIError carries the status code and response body of a failed
// provider call. Unwraps to one of the sentinel errors above.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("classroom: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
func classifyStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if status >= http.StatusInternalServerError {
			return ErrServerError
		}

		return fmt.Errorf("classroom: unexpected status %d", status)
	}
}

// isRetryable reports whether a request that failed with the given status
// is worth retrying.
func isRetryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
