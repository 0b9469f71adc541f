package errors

import (
	"errors"
	"fmt"
)

// EngineError is the standard error type for all engine operations.
type EngineError struct {
	Code      string         // Structured error code (ERR_XXX_DESC)
	Message   string         // Human-readable message
	Category  Category       // Error category
	Severity  Severity       // Error severity
	Retryable bool           // Whether the operation can be retried
	Cause     error          // Underlying error, if any
	Context   map[string]any // Additional context for debugging
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair for debugging.
func (e *EngineError) WithContext(key string, value any) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a new EngineError with the given code and message.
func New(code, message string) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a new EngineError with a formatted message.
func Newf(code, format string, args ...any) *EngineError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a code and message.
func Wrap(cause error, code, message string) *EngineError {
	err := New(code, message)
	err.Cause = cause
	return err
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(cause error, code, format string, args ...any) *EngineError {
	err := Newf(code, format, args...)
	err.Cause = cause
	return err
}

// IsRetryable reports whether err represents a transient failure.
// Plain errors without a structured code are not retryable.
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}

// GetCode extracts the structured code from err, or ERR_501_INTERNAL
// for unstructured errors.
func GetCode(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ErrCodeInternal
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Category == cat
	}
	return false
}

// Is re-exports errors.Is so callers need a single import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports errors.As so callers need a single import.
func As(err error, target any) bool {
	return errors.As(err, target)
}
