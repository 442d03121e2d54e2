// Package errors provides structured error types for trajgroups.
//
// The grouping pipeline is a deterministic batch computation, so errors fall
// into a small taxonomy with very different handling:
//   - INVALID_*: input contract violations, rejected before any algorithm runs
//   - INVALID_STRUCTURE: a critical-graph invariant was broken (fatal)
//   - SOLVER_*: the ordering instance could not be solved (fatal)
//   - CACHE_CORRUPT: a persisted artifact is unreadable (recovered as a miss)
//
// None of these are retryable: rerunning the same computation reproduces the
// same failure.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidInput, "entity ids not gapless: missing %d", id)
//	if errors.Is(err, errors.ErrCodeInvalidInput) {
//	    // reject the dataset
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeSolverError, origErr, "solve %d variables", n)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input contract violations
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidDataset Code = "INVALID_DATASET"
	ErrCodeInvalidOption  Code = "INVALID_OPTION"
	ErrCodeInvalidFormat  Code = "INVALID_FORMAT"

	// Structural invariant violations
	ErrCodeInvalidStructure Code = "INVALID_STRUCTURE"

	// Solver failures
	ErrCodeSolverInfeasible Code = "SOLVER_INFEASIBLE"
	ErrCodeSolverError      Code = "SOLVER_ERROR"

	// Persistence
	ErrCodeCacheCorrupt Code = "CACHE_CORRUPT"
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeStorage      Code = "STORAGE_ERROR"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatal reports whether err signals a defect in the pipeline itself
// (broken invariant or unsolvable instance) rather than bad input or a
// recoverable persistence problem.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidStructure, ErrCodeSolverInfeasible, ErrCodeSolverError, ErrCodeInternal:
		return true
	}
	return false
}

// Invariant builds an INVALID_STRUCTURE error. Callers use it when a
// critical-graph property that the builder guarantees does not hold.
func Invariant(format string, args ...any) *Error {
	return New(ErrCodeInvalidStructure, format, args...)
}
