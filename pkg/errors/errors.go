// Package errors provides the error taxonomy shared by every index component.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is comparisons that don't need an ErrorCode.
var (
	// ErrNotFound is returned when a referenced tuple or page does not exist.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned when an operation is attempted on a closed relation.
	ErrClosed = errors.New("relation closed")
)

// ErrorCode classifies an error the way spec.md §7 requires. The numeric
// layers (codec, kmeans, simd) never allocate one; the page, tuple, storage
// and algorithm packages do.
type ErrorCode string

const (
	// CodeDataCorruption marks a non-recoverable structural inconsistency: a
	// referenced slot is missing, a tuple fails validation, or an opaque
	// header disagrees with the observed chain state. Aborts the operation.
	CodeDataCorruption ErrorCode = "DATA_CORRUPTION"

	// CodeInvalidInput marks bad caller input: wrong dimensionality,
	// unsupported metric, or a malformed external-build table. Reported
	// before any mutation happens.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInterrupted marks host-driven cancellation observed between page
	// boundaries.
	CodeInterrupted ErrorCode = "INTERRUPTED"

	// CodeResourceExhausted marks failure to acquire a resource needed to
	// proceed, such as a build worker pool.
	CodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
)

// AppError is the error type every exported operation returns on failure.
type AppError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError with no wrapped cause.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap creates an AppError wrapping err with the given code and message.
func Wrap(code ErrorCode, message string, err error) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Err: err}
}

// WithDetails attaches a key/value pair of diagnostic context and returns e.
func (e *AppError) WithDetails(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Corruption wraps err (or creates a fresh error if err is nil) tagged as
// CodeDataCorruption. This is the only error kind that is fatal to the
// current operation per spec.md §7.
func Corruption(message string, err error) *AppError {
	if err == nil {
		return New(CodeDataCorruption, message)
	}
	return Wrap(CodeDataCorruption, message, err)
}

// InvalidInput wraps err (or creates a fresh error if err is nil) tagged as
// CodeInvalidInput.
func InvalidInput(message string, err error) *AppError {
	if err == nil {
		return New(CodeInvalidInput, message)
	}
	return Wrap(CodeInvalidInput, message, err)
}

// Interrupted creates a CodeInterrupted error for host-driven cancellation.
func Interrupted(message string) *AppError {
	return New(CodeInterrupted, message)
}

// ResourceExhausted wraps err tagged as CodeResourceExhausted.
func ResourceExhausted(message string, err error) *AppError {
	return Wrap(CodeResourceExhausted, message, err)
}

// Is reports whether err carries the given ErrorCode, looking through an
// AppError chain.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsCorruption reports whether err is a CodeDataCorruption error.
func IsCorruption(err error) bool { return Is(err, CodeDataCorruption) }

// IsInvalidInput reports whether err is a CodeInvalidInput error.
func IsInvalidInput(err error) bool { return Is(err, CodeInvalidInput) }

// IsInterrupted reports whether err is a CodeInterrupted error.
func IsInterrupted(err error) bool { return Is(err, CodeInterrupted) }
