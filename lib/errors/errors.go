// Package errors provides structured error types for redistools.
//
// The resilient pool surfaces exactly two user-visible failure kinds:
//   - ErrUnavailable: no healthy connection could be obtained, even after
//     rebuilding the pool
//   - ErrWorkFailed: a connection was obtained but the caller's unit of work
//     returned an error or panicked
//
// Both are reported as a coded *Error so callers can apply different retry
// policies without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for categorizing failures.
const (
	CodeInternal      = 1000 // Internal error
	CodeUnavailable   = 1001 // No healthy connection could be obtained
	CodeWorkFailed    = 1002 // Caller work failed with a healthy connection
	CodeTimeout       = 1003 // Caller context expired or was cancelled
	CodeConfiguration = 1004 // Invalid configuration
	CodeInvalidInput  = 1005 // Invalid argument
	CodeNotFound      = 1006 // Element or key not found
	CodeClosed        = 1007 // Resource already closed
)

// Sentinel errors for common error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrUnavailable indicates the store could not be reached through the pool.
	ErrUnavailable = errors.New("store unavailable")

	// ErrWorkFailed indicates the caller-supplied work failed.
	ErrWorkFailed = errors.New("work failed")

	// ErrTimeout indicates the caller's context ended before a connection was obtained.
	ErrTimeout = errors.New("operation timed out")

	// ErrConfiguration indicates a configuration error.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates an element or key was not found.
	ErrNotFound = errors.New("not found")

	// ErrClosed indicates a resource is closed.
	ErrClosed = errors.New("closed")

	// ErrInternal indicates an internal error.
	ErrInternal = errors.New("internal error")
)

// Pool errors
var (
	// ErrPoolClosed is returned when operating on a closed pool.
	ErrPoolClosed = fmt.Errorf("pool: %w", ErrClosed)

	// ErrPoolExhausted is returned when no connection could be borrowed in time.
	ErrPoolExhausted = errors.New("pool: connection pool exhausted")

	// ErrBorrowTimeout is returned when a borrow waited longer than the borrow timeout.
	ErrBorrowTimeout = errors.New("pool: borrow timeout")

	// ErrBrokenConnection is returned when a borrowed connection fails verification.
	ErrBrokenConnection = errors.New("pool: connection failed verification")
)

// Reconnect errors
var (
	// ErrNoHealthyResource signals the acquirer hit its failure threshold.
	ErrNoHealthyResource = errors.New("resilience: no healthy connection found")

	// ErrReconnectExhausted indicates every rebuild round failed.
	ErrReconnectExhausted = fmt.Errorf("resilience: reconnect attempts exhausted: %w", ErrUnavailable)

	// ErrEngineClosed indicates the engine was shut down.
	ErrEngineClosed = fmt.Errorf("resilience: engine %w", ErrClosed)

	// ErrPoolUnresolvable indicates the pool could not be created because the
	// endpoint could not be resolved.
	ErrPoolUnresolvable = errors.New("resilience: cannot resolve store endpoint")
)

// Collection errors
var (
	// ErrEmptyCollection indicates the collection holds no elements.
	ErrEmptyCollection = fmt.Errorf("collections: empty: %w", ErrNotFound)

	// ErrNilArgument indicates a required argument was nil.
	ErrNilArgument = fmt.Errorf("collections: nil argument: %w", ErrInvalidInput)
)

// Error is a structured error with a code and safe message.
type Error struct {
	// Code is the error code for categorization
	Code int `json:"code"`
	// Message is a short, user-facing error message
	Message string `json:"message"`
	// Err is the underlying error
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// SafeMessage returns the message without the underlying cause.
func (e *Error) SafeMessage() string {
	return e.Message
}

// New creates a new structured error with the given code and message.
func New(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(code int, message string, err error) *Error {
	if err != nil {
		log.WithField("code", code).WithError(err).Debug("wrapping error")
	}
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Unavailable reports that no healthy connection could be obtained.
// The cause is kept for debugging; errors.Is(err, ErrUnavailable) always holds.
func Unavailable(cause error) *Error {
	if cause == nil || !errors.Is(cause, ErrUnavailable) {
		cause = Join(ErrUnavailable, cause)
	}
	return Wrap(CodeUnavailable, "store unavailable", cause)
}

// WorkFailed reports that the caller's work failed while holding a healthy connection.
func WorkFailed(cause error) *Error {
	return Wrap(CodeWorkFailed, "work failed", Join(ErrWorkFailed, cause))
}

// Canceled reports that the caller's context ended before a connection was obtained.
// The result matches both ErrTimeout and ErrUnavailable, plus the context error.
func Canceled(ctxErr error) *Error {
	return Wrap(CodeTimeout, "acquisition cancelled", Join(ErrTimeout, ErrUnavailable, ctxErr))
}

// FromSentinel creates a structured error from a sentinel error.
// It assigns an error code based on the error type.
func FromSentinel(err error) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    codeFromError(err),
		Message: err.Error(),
		Err:     err,
	}
}

// CodeOf returns the code of the first *Error in err's tree, or a code
// derived from the sentinel it wraps.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return codeFromError(err)
}

// codeFromError maps sentinel errors to error codes.
// Order matters: a cancelled acquisition matches ErrUnavailable too.
func codeFromError(err error) int {
	switch {
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrWorkFailed):
		return CodeWorkFailed
	case errors.Is(err, ErrUnavailable):
		return CodeUnavailable
	case errors.Is(err, ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrClosed):
		return CodeClosed
	default:
		return CodeInternal
	}
}

// IsUnavailable returns true if no healthy connection could be obtained.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsWorkFailed returns true if the caller's work failed.
func IsWorkFailed(err error) bool {
	return errors.Is(err, ErrWorkFailed)
}

// IsTimeout returns true if the error indicates a timeout or cancellation.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsNotFound returns true if the error indicates an element was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput returns true if the error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsClosed returns true if the error indicates a resource is closed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// Join combines multiple errors into a single error.
// Returns nil if all errors are nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target,
// and if so, sets target to that error value and returns true.
func As(err error, target any) bool {
	return errors.As(err, target)
}
