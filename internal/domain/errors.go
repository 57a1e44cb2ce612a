// Package domain defines the core business entities and errors.
package domain

import "errors"

// ErrValidation is returned when a domain entity fails validation.
// Matched with errors.Is; the concrete *ValidationError carries the field.
var ErrValidation = errors.New("validation failed")

// ValidationError describes the first field that failed validation and why.
// It wraps ErrValidation so callers can match with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + ": " + e.Reason
}

// Unwrap allows errors.Is(err, ErrValidation) to succeed.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a ValidationError for the given field and reason.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
