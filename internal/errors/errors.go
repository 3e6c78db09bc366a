// Package errors provides the structured error type used across waykb.
// It carries a stable code, a category and a severity so callers can
// distinguish per-file skips from fatal build aborts without string
// matching.
package errors

import (
	"fmt"
)

// BuildError is the structured error type for waykb.
type BuildError struct {
	// Code is the unique error code (e.g. "ERR_301_EMPTY_CORPUS").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Source, Build, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with BuildError.
func (e *BuildError) Is(target error) bool {
	if t, ok := target.(*BuildError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *BuildError) WithDetail(key, value string) *BuildError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new BuildError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *BuildError {
	return &BuildError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a BuildError from an existing error.
// The error's message becomes the BuildError message.
func Wrap(code string, err error) *BuildError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// SourceReadError marks a single source file as unreadable or unparseable.
// These are skipped with a logged warning; the build continues.
func SourceReadError(path string, cause error) *BuildError {
	return New(ErrCodeSourceRead, fmt.Sprintf("cannot read source %s", path), cause).
		WithDetail("path", path)
}

// EmptyCorpusError signals that phase 1 produced zero entries.
// No vector index can be built over an empty corpus.
func EmptyCorpusError() *BuildError {
	return New(ErrCodeEmptyCorpus, "no entries in database after phase 1", nil)
}

// IndexConsistencyError signals an embedding/row count disagreement
// detected before the vector index would have been persisted.
func IndexConsistencyError(rows, embeddings int) *BuildError {
	return New(ErrCodeIndexConsistency,
		fmt.Sprintf("embedding count %d does not match row count %d", embeddings, rows), nil).
		WithDetail("rows", fmt.Sprintf("%d", rows)).
		WithDetail("embeddings", fmt.Sprintf("%d", embeddings))
}

// VerificationMismatch marks a manifest/artifact disagreement found by
// the verifier. Non-fatal to the process, but flips the overall result.
func VerificationMismatch(message string) *BuildError {
	return New(ErrCodeVerifyMismatch, message, nil)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *BuildError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the whole build.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if be, ok := err.(*BuildError); ok {
		return be.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a BuildError.
// Returns empty string if not a BuildError.
func GetCode(err error) string {
	if be, ok := err.(*BuildError); ok {
		return be.Code
	}
	return ""
}
