package gateway

import (
	"errors"
	"fmt"
)

// ErrorCode classifies gateway failures for callers and for retry decisions.
type ErrorCode string

const (
	// CodeAuth: no session, or the session is irrecoverably expired. Not retried.
	CodeAuth ErrorCode = "auth_error"
	// CodeSessionExpired: the remote rejected this call's token. Surfaced
	// immediately so one call's stale token never cascades into a global
	// sign-out for concurrent calls.
	CodeSessionExpired ErrorCode = "session_expired"
	// CodeCircuitOpen: fast local rejection while the breaker is open.
	CodeCircuitOpen ErrorCode = "circuit_open"
	// CodeRateLimited: the provider throttled us (429) and retries ran out.
	CodeRateLimited ErrorCode = "rate_limited"
	// CodeTransient: 5xx or network failure that outlived the retry budget.
	CodeTransient ErrorCode = "service_unavailable"
	// CodeInvalidRequest: the remote rejected the request (other 4xx). Not retried.
	CodeInvalidRequest ErrorCode = "invalid_request"
	// CodeImageProcessing: the screenshot could not be read or decoded.
	CodeImageProcessing ErrorCode = "image_processing_error"
)

// Error is the gateway failure taxonomy. Public task methods never let one
// escape; they fold it into the result they return.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap supports errors.Is/errors.As through the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the gateway error code, or empty for foreign errors.
func CodeOf(err error) ErrorCode {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// retryable reports whether the transport should retry after this failure.
func retryable(err error) bool {
	switch CodeOf(err) {
	case CodeRateLimited, CodeTransient:
		return true
	}
	return false
}
