package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrorType classifies an error for retry decisions.
type ErrorType int

const (
	// ErrorTypeTransient errors may succeed when retried.
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent errors will fail again with the same input.
	ErrorTypePermanent
	// ErrorTypeDegraded errors come from a protective mechanism (open circuit).
	ErrorTypeDegraded
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// TransientError marks a failure that can be retried.
type TransientError struct {
	Err        error
	StatusCode int    // HTTP status code if applicable
	RetryAfter int    // Seconds suggested by the upstream (Retry-After)
	Message    string // Caller-facing message
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError marks a failure that must not be retried.
type PermanentError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// DegradedError is returned while a dependency is fenced off, e.g. by an open circuit breaker.
type DegradedError struct {
	Err     error
	Message string
}

func (e *DegradedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("degraded error: %v", e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}
	var degradedErr *DegradedError
	if errors.As(err, &degradedErr) {
		return false
	}

	// A cancelled caller is never retried; an expired per-attempt deadline is.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if isNetworkError(err) || isSyscallError(err) {
		return true
	}

	return false
}

// IsPermanent reports whether err was explicitly marked permanent.
func IsPermanent(err error) bool {
	var permanentErr *PermanentError
	return errors.As(err, &permanentErr)
}

// IsDegraded reports whether err comes from a degraded dependency.
func IsDegraded(err error) bool {
	var degradedErr *DegradedError
	return errors.As(err, &degradedErr)
}

// GetErrorType classifies an error. Unknown errors are permanent so they are never retried forever.
func GetErrorType(err error) ErrorType {
	switch {
	case err == nil:
		return ErrorTypePermanent
	case IsDegraded(err):
		return ErrorTypeDegraded
	case IsTransient(err):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// StatusCode returns the HTTP status recorded on err, or 0.
func StatusCode(err error) int {
	var transientErr *TransientError
	if errors.As(err, &transientErr) && transientErr.StatusCode > 0 {
		return transientErr.StatusCode
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return permanentErr.StatusCode
	}
	return 0
}

// FromHTTPStatus wraps err as transient or permanent based on an upstream HTTP status.
func FromHTTPStatus(err error, status int, message string) error {
	if err == nil {
		return nil
	}
	if IsTransientHTTPStatus(status) {
		return &TransientError{Err: err, StatusCode: status, Message: message}
	}
	return &PermanentError{Err: err, StatusCode: status, Message: message}
}

// IsTransientHTTPStatus reports whether an upstream status is retryable (429 and 5xx gateway errors).
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Describe converts an error into a short actionable message for API callers.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) && transientErr.Message != "" {
		return transientErr.Message
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) && permanentErr.Message != "" {
		return permanentErr.Message
	}
	var degradedErr *DegradedError
	if errors.As(err, &degradedErr) && degradedErr.Message != "" {
		return degradedErr.Message
	}

	lowerErr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErr, "connection refused"):
		return "Model endpoint is not reachable. Check the configured endpoint."
	case strings.Contains(lowerErr, "rate limit"):
		return "Model rate limit reached. Retry later."
	case strings.Contains(lowerErr, "deadline exceeded"), strings.Contains(lowerErr, "timeout"):
		return "Model request timed out."
	case strings.Contains(lowerErr, "unauthorized"):
		return "Model authentication failed. Check the configured API key."
	}
	return err.Error()
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection refused", "connection reset", "broken pipe", "unexpected eof"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

func isSyscallError(err error) bool {
	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		switch syscallErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	return false
}

// NewTransientError wraps err as retryable with a caller-facing message.
func NewTransientError(err error, message string) *TransientError {
	return &TransientError{Err: err, Message: message}
}

// NewPermanentError wraps err as non-retryable with a caller-facing message.
func NewPermanentError(err error, message string) *PermanentError {
	return &PermanentError{Err: err, Message: message}
}

// NewDegradedError wraps err as coming from a fenced-off dependency.
func NewDegradedError(err error, message string) *DegradedError {
	return &DegradedError{Err: err, Message: message}
}
