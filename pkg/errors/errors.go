// Package errors provides structured, coded errors for caseline.
// Errors carry a code, key/value context and an optional cause.
package errors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code identifies an error class for programmatic handling.
type Code string

const (
	// Input errors (1xx)
	CodeFileNotFound     Code = "E101"
	CodeFilePermission   Code = "E102"
	CodeInvalidFormat    Code = "E103"
	CodeMissingColumn    Code = "E104"
	CodeInvalidTimestamp Code = "E105"

	// Case computation errors (2xx)
	CodeParseFailed    Code = "E201"
	CodeCaseNotFound   Code = "E203"
	CodeMalformedEvent Code = "E204"
	CodeUnsortedInput  Code = "E205"

	// Output errors (3xx)
	CodeWriteFailed Code = "E301"

	// System errors (4xx)
	CodeContextCanceled Code = "E401"
	CodeTimeout         Code = "E402"
	CodePanic           Code = "E403"

	// Source errors (5xx)
	CodeSourceInit  Code = "E501"
	CodeSourceQuery Code = "E502"

	// Cache errors (6xx)
	CodeCacheFailed Code = "E601"

	// Unknown
	CodeUnknown Code = "E999"
)

// CaselineError is the base error type for all caseline errors.
type CaselineError struct {
	Code    Code
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *CaselineError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *CaselineError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target error.
func (e *CaselineError) Is(target error) bool {
	if t, ok := target.(*CaselineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *CaselineError) WithContext(key string, value interface{}) *CaselineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new CaselineError.
func New(code Code, message string) *CaselineError {
	return &CaselineError{Code: code, Message: message}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code Code, message string) *CaselineError {
	if err == nil {
		return nil
	}

	return &CaselineError{Code: code, Message: message, Cause: err}
}

// --- Convenience constructors ---

// FileNotFound creates a file not found error.
func FileNotFound(path string) *CaselineError {
	return New(CodeFileNotFound, "file not found").WithContext("path", path)
}

// MissingColumn creates a missing column error.
func MissingColumn(column string, available []string) *CaselineError {
	return New(CodeMissingColumn, "required column not found").
		WithContext("column", column).
		WithContext("available", available)
}

// CaseNotFound reports that a case identifier matched no events.
func CaseNotFound(caseID string) *CaselineError {
	return New(CodeCaseNotFound, "case has no events").WithContext("case", caseID)
}

// MalformedEvent reports an event missing a required field.
func MalformedEvent(caseID string, row int, field string) *CaselineError {
	return New(CodeMalformedEvent, "event is missing a required field").
		WithContext("case", caseID).
		WithContext("row", row).
		WithContext("field", field)
}

// UnsortedInput reports an event that precedes its predecessor within an activity.
func UnsortedInput(caseID, activity string, row int) *CaselineError {
	return New(CodeUnsortedInput, "events are not in chronological order").
		WithContext("case", caseID).
		WithContext("activity", activity).
		WithContext("row", row)
}

// FromContext maps a context error to CodeTimeout or CodeContextCanceled.
// It returns nil for a nil err.
func FromContext(err error, operation string) *CaselineError {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, CodeTimeout, "operation timed out").WithContext("operation", operation)
	}
	return Wrap(err, CodeContextCanceled, "operation canceled").WithContext("operation", operation)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var clErr *CaselineError
	if errors.As(err, &clErr) {
		return clErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var clErr *CaselineError
	if errors.As(err, &clErr) {
		return clErr.Code
	}
	return CodeUnknown
}

// MultiError collects multiple errors.
type MultiError struct {
	Errors []error
}

// Error implements the error interface.
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(m.Errors)))
	for i, err := range m.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if any errors were collected.
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Combined returns nil if no errors, the single error if one, or the MultiError.
func (m *MultiError) Combined() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}
