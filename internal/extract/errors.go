package extract

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceUnavailable means the model endpoint could not be reached,
	// answered with an error, or is being shed by the circuit breaker.
	ErrServiceUnavailable = errors.New("extraction service unavailable")

	// ErrTimeout means a model call exceeded its bounded wait.
	ErrTimeout = errors.New("extraction timeout")
)

// MalformedOutputError describes a model response that carried no usable
// event array. It is recovered by the service and never aborts a document.
type MalformedOutputError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *MalformedOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed model output: %s: %v", e.Reason, e.Err)
	}
	return "malformed model output: " + e.Reason
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
