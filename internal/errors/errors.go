package errors

import (
	"errors"
	"fmt"
)

// OfdbError is the structured error type of the search index.
// It provides rich context for error handling, logging, and user presentation.
type OfdbError struct {
	// Code is the unique error code (e.g., "ERR_205_CORRUPT_INDEX").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *OfdbError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *OfdbError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with OfdbError.
func (e *OfdbError) Is(target error) bool {
	if t, ok := target.(*OfdbError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *OfdbError) WithDetail(key, value string) *OfdbError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *OfdbError) WithSuggestion(suggestion string) *OfdbError {
	e.Suggestion = suggestion
	return e
}

// New creates a new OfdbError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *OfdbError {
	return &OfdbError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates an OfdbError from an existing error.
// The error's message becomes the OfdbError message.
func Wrap(code string, err error) *OfdbError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *OfdbError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *OfdbError {
	return New(ErrCodeFileNotFound, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *OfdbError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *OfdbError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal checks if an error has fatal severity anywhere in its chain.
func IsFatal(err error) bool {
	var oe *OfdbError
	if errors.As(err, &oe) {
		return oe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code of the first OfdbError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var oe *OfdbError
	if errors.As(err, &oe) {
		return oe.Code
	}
	return ""
}

// GetCategory extracts the category of the first OfdbError in the chain.
func GetCategory(err error) Category {
	var oe *OfdbError
	if errors.As(err, &oe) {
		return oe.Category
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return errors.Is(err, &OfdbError{Code: code})
}
