package resilience

import (
	"errors"
	"net/http"
)

// TransientError marks an error as retryable. Wrap throttling and server-side
// failures in TransientError so Do/DoVal will retry them; anything else is
// treated as permanent and fails the call immediately.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as transient. Returns nil if err is nil.
func NewTransientError(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is marked transient anywhere in its chain.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsTransientHTTPStatus reports whether an HTTP status code indicates a
// failure worth retrying: request timeout, throttling, or a server error.
func IsTransientHTTPStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, // 408
		http.StatusTooManyRequests,     // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	}
	return false
}

// ErrorCategory classifies a run failure for the run ledger.
func ErrorCategory(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
