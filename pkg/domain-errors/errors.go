// Package domainerrors provides the typed error taxonomy used across all
// services and handlers.
//
// Every error crossing a component boundary carries a machine-readable Code.
// Classification (HTTP status mapping, retry eligibility) is a match on the
// code, never a scan of the message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error classification.
type Code string

const (
	// CodeInvalidInput marks malformed input rejected at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks a request missing required parameters.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthenticated marks a missing or invalid credential.
	CodeUnauthenticated Code = "unauthenticated"
	// CodeForbidden marks an authenticated caller failing a precondition.
	CodeForbidden Code = "forbidden"
	// CodeMissingTenant marks a request with no resolvable tenant.
	CodeMissingTenant Code = "missing_tenant"
	// CodeLocked marks a mutation rejected because the target is frozen
	// by a processed payroll batch.
	CodeLocked Code = "locked"
	// CodeNotFound marks a referenced entity that does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a state transition the entity does not allow.
	CodeConflict Code = "conflict"
	// CodeRateLimited marks a request rejected by throttling. Never retried.
	CodeRateLimited Code = "rate_limited"
	// CodeUnavailable marks a transient infrastructure failure. Retryable.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks an unexpected infrastructure failure.
	CodeInternal Code = "internal"
	// CodeInvariantViolation marks a broken domain invariant (data anomaly).
	CodeInvariantViolation Code = "invariant_violation"
)

// Error is a domain error with a stable code and a human-readable message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause chain for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or any error in its chain carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// CodeOf returns the code of the outermost domain error in the chain, or
// CodeInternal when err carries no domain code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the message of the outermost domain error, or a generic
// fallback so raw infrastructure detail never leaks to clients.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
