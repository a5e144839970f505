// Package errors provides sentinel errors for the timebase storage engine.
//
// Components wrap these sentinels with fmt.Errorf("...: %w", ...) so callers
// can classify failures with errors.Is without parsing messages.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for all error conditions in the storage core.
var (
	// Value decoding
	ErrMalformedValue = errors.New("malformed value for declared type")
	ErrInvalidType    = errors.New("invalid measurement type")

	// Aggregation
	ErrUnsupportedType = errors.New("aggregate not defined for non-numeric series")

	// Lookup
	ErrNotFound       = errors.New("not found")
	ErrSeriesNotFound = errors.New("series not found")

	// Persistence
	ErrStorage = errors.New("storage error")

	// Configuration
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")
)

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSeriesNotFound)
}

// IsMalformed returns true if err is a value decoding error.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedValue) ||
		errors.Is(err, ErrInvalidType)
}

// IsStorage returns true if err is an underlying store failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsValidation returns true if err is a configuration validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// NewNotFound creates a not-found error with context.
func NewNotFound(entityType, identifier string) error {
	return fmt.Errorf("%s '%s': %w", entityType, identifier, ErrNotFound)
}

// NewMalformed creates a decoding error carrying the offending text.
func NewMalformed(typ, text string) error {
	return fmt.Errorf("cannot decode %q as %s: %w", text, typ, ErrMalformedValue)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}
