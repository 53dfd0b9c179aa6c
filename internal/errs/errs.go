// Package errs defines the surface-visible error taxonomy shared by the
// HTTP, WebSocket, session, job queue and pipeline layers.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the purposes of wire-level mapping.
type Kind string

const (
	InvalidInput      Kind = "InvalidInput"
	NotFound          Kind = "NotFound"
	InvalidState      Kind = "InvalidState"
	Unauthenticated   Kind = "Unauthenticated"
	Forbidden         Kind = "Forbidden"
	RateLimited       Kind = "RateLimited"
	ResourceExhausted Kind = "ResourceExhausted"
	RecognizerFailed  Kind = "RecognizerFailed"
	EnhancerFailed    Kind = "EnhancerFailed"
	Internal          Kind = "Internal"
)

// Error is the concrete error type produced at component boundaries.
type Error struct {
	Kind       Kind
	Message    string
	Cause      error
	RetryAfter int // seconds, only meaningful for RateLimited
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping an existing error.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// RateLimitedWithRetry constructs a RateLimited error carrying retry_after.
func RateLimitedWithRetry(retryAfter int) *Error {
	return &Error{Kind: RateLimited, Message: "rate limit exceeded", RetryAfter: retryAfter}
}

// KindOf extracts the Kind from err, defaulting to Internal when err does
// not carry one of our typed errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// StatusCode maps a Kind to the HTTP status code it surfaces as.
func StatusCode(kind Kind) int {
	switch kind {
	case InvalidInput:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case InvalidState:
		return http.StatusConflict
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case RateLimited:
		return http.StatusTooManyRequests
	case ResourceExhausted:
		return http.StatusServiceUnavailable
	case RecognizerFailed:
		return http.StatusBadGateway
	case Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
