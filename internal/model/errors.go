package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for data model construction and decoding.
var (
	// ErrShapeMismatch indicates a decoded query result whose shape does not
	// match the one implied by the query variant.
	ErrShapeMismatch = errors.New("query result shape mismatch")

	// ErrFixedOutOfRange indicates fixed-point arithmetic or parsing that
	// would produce a negative or overflowing result. Fixed values are never
	// clamped or wrapped.
	ErrFixedOutOfRange = errors.New("fixed-point value out of range")
)

// ValidationError names the field that failed structural validation.
// Raised at construction time, before any encoding or I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationErr(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
