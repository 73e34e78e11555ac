package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel errors for network-level failures. Both wrap the underlying
// transport error so callers can still inspect it.
var (
	// ErrTimeout marks a request that was aborted by the request timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrUnreachable marks a request that never reached the backend.
	ErrUnreachable = errors.New("backend unreachable")
)

// APIError is returned for any non-2xx HTTP response. Callers branch on the
// numeric status; Code carries the backend's machine-readable error code when
// the payload includes one.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, http.StatusText(e.Status))
}

// StatusOf returns the HTTP status of err, or 0 when err is not an APIError.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// CodeOf returns the backend error code of err, or "" when absent.
func CodeOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// IsTimeout reports whether err was caused by the request timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsUnreachable reports whether err was a transport failure rather than a
// backend response.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// IsAuthExpired reports an HTTP 401 response (expired or invalid session).
func IsAuthExpired(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

// IsNotFound reports an HTTP 404 response.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsValidation reports an HTTP 422 response.
func IsValidation(err error) bool {
	return StatusOf(err) == http.StatusUnprocessableEntity
}

// IsServerFault reports an HTTP 5xx response.
func IsServerFault(err error) bool {
	return StatusOf(err) >= http.StatusInternalServerError
}
