// Package apperr defines the error taxonomy shared by the gateway, the queue
// store and the sync engine.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error by how callers are expected to react to it.
type Code string

const (
	// Unauthorized means the credential is invalid or expired. Callers should
	// force a new sign-in instead of queuing.
	Unauthorized Code = "UNAUTHORIZED"
	// Transport covers network failures, timeouts and non-2xx responses other
	// than 401. Updates that fail this way are queued.
	Transport Code = "TRANSPORT"
	// Decode means the server answered with a payload we could not parse.
	Decode Code = "DECODE"
	// Persistence means local storage could not be read or written.
	Persistence Code = "PERSISTENCE"
	// InvalidInput rejects a request before any side effect happens.
	InvalidInput Code = "INVALID_INPUT"
	// NotFound means a lookup or write matched nothing.
	NotFound Code = "NOT_FOUND"
)

// AppError carries a Code alongside a message and an optional cause.
type AppError struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError without a cause.
func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates an AppError with a formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a code and message.
func Wrap(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the outermost AppError in err's chain, or "" when
// there is none.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is reports whether any AppError in err's chain carries code.
func Is(err error, code Code) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// IsUnauthorized is shorthand for Is(err, Unauthorized).
func IsUnauthorized(err error) bool {
	return Is(err, Unauthorized)
}

// IsRecoverable reports whether the caller can proceed with a default value
// (empty queue, stale cache) after logging err. Unauthorized, invalid input and
// uncoded errors must be surfaced.
func IsRecoverable(err error) bool {
	switch CodeOf(err) {
	case Transport, Persistence, Decode:
		return true
	default:
		return false
	}
}
