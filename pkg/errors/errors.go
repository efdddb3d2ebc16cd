// Package errors provides structured error types for bpdoc.
//
// This package defines error codes and types that enable:
//   - Consistent per-artifact failure reporting across export modes
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages in CLI summaries
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes group by the layer that raises them:
//   - INVALID_*, MALFORMED_*, DANGLING_*: host snapshot problems
//   - NOT_FOUND: an artifact vanished before it could be read
//   - SCHEDULER_*: monitoring session lifecycle and state
//   - SINK_FAILURE: a document could not be written
//   - INTERNAL_*: unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidArtifact, "artifact %s has no path", name)
//	if errors.Is(err, errors.ErrCodeInvalidArtifact) {
//	    // skip and continue with the next artifact
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeSinkFailure, origErr, "write %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Host snapshot errors
	ErrCodeInvalidArtifact       Code = "INVALID_ARTIFACT"
	ErrCodeMalformedGraphElement Code = "MALFORMED_GRAPH_ELEMENT"
	ErrCodeDanglingLink          Code = "DANGLING_LINK"
	ErrCodeNotFound              Code = "NOT_FOUND"

	// Monitoring session errors
	ErrCodeSchedulerMisuse    Code = "SCHEDULER_MISUSE"
	ErrCodeSchedulerCorrupted Code = "SCHEDULER_CORRUPTED"

	// Output errors
	ErrCodeSinkFailure Code = "SINK_FAILURE"

	// Configuration errors
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
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

// Warning is a non-fatal problem found while exporting one artifact.
// The export continues; warnings are attached to the run result.
type Warning struct {
	Code    Code   `json:"code"`
	Path    string `json:"path,omitempty"`    // Artifact path
	Graph   string `json:"graph,omitempty"`   // Graph name, if the problem is inside a graph
	Element string `json:"element,omitempty"` // Node or pin identifier
	Message string `json:"message"`
}

// String formats the warning on one line.
func (w Warning) String() string {
	loc := w.Path
	if w.Graph != "" {
		loc += "#" + w.Graph
	}
	if w.Element != "" {
		loc += "/" + w.Element
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", w.Code, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Code, loc, w.Message)
}
