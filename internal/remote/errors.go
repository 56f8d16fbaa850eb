package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrConflict marks a version mismatch reported by the server. It is
// never auto-retried; the caller surfaces it for explicit resolution.
var ErrConflict = errors.New("version conflict")

// ErrNotFound marks a missing remote resource. Callers may treat it as
// a cue for implicit creation where that is semantically safe.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the remote service, carrying a
// human-readable message distinct from the status code.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote api error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote api error: status %d", e.StatusCode)
}

// classifyStatus maps an HTTP status into the error taxonomy.
func classifyStatus(code int, message string) error {
	apiErr := &APIError{StatusCode: code, Message: message}
	switch code {
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, apiErr.Error())
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Error())
	default:
		return apiErr
	}
}

// IsRetryable reports whether an error is a transient failure worth
// retrying with backoff: timeouts, connection errors, throttling and
// server-side 5xx. Conflicts and not-found are never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 ||
			apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
