package domain

import "errors"

// Cross-cutting domain errors. Entity-specific sentinels live alongside
// their entities.
var (
	// ErrValidation is returned when input fails validation. Callers wrap
	// it with the specific field or constraint that failed.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an identifier is malformed.
	ErrInvalidID = errors.New("invalid ID")
)
