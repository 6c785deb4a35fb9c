package models

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies a parse failure. Categories drive the
// user-facing message and recovery suggestions on terminal errors.
type ErrorCategory string

const (
	ErrNetwork           ErrorCategory = "NETWORK"
	ErrSizeLimit         ErrorCategory = "SIZE_LIMIT"
	ErrSecurityRejected  ErrorCategory = "SECURITY_REJECTED"
	ErrFormatInvalid     ErrorCategory = "FORMAT_INVALID"
	ErrUnsupportedType   ErrorCategory = "UNSUPPORTED_TYPE"
	ErrDecodeFailure     ErrorCategory = "DECODE_FAILURE"
	ErrTooManyConcurrent ErrorCategory = "TOO_MANY_CONCURRENT_OPERATIONS"
)

// ParseError is the typed error flowing through the pipeline. Failures are
// always returned as data at the facade boundary; ParseError exists so
// internal stages can classify what went wrong.
type ParseError struct {
	Category ErrorCategory
	Message  string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a classified error wrapping an optional cause.
func NewParseError(category ErrorCategory, message string, err error) *ParseError {
	return &ParseError{Category: category, Message: message, Err: err}
}

// CategoryOf extracts the category from err, walking the wrap chain.
// Unclassified errors map to ErrDecodeFailure.
func CategoryOf(err error) ErrorCategory {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrDecodeFailure
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Category == category
}
