// Package service provides application-level services that orchestrate
// question generation for exam sections.
package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// These errors represent common conditions that callers may want to check for with errors.Is().
//
// Error handling principles:
// 1. Service methods return sentinel errors for expected error conditions
// 2. Unexpected errors are wrapped in service-specific error types
// 3. Callers use errors.Is/errors.As to check for specific error conditions
// 4. The API layer maps service errors to appropriate HTTP status codes
var (
	// ErrNotOwned indicates a resource is owned by a different user than the one making the request.
	// API layer should map this to HTTP 403 Forbidden.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrSectionNotFound indicates that the section does not exist.
	// API layer should map this to HTTP 404 Not Found.
	ErrSectionNotFound = errors.New("section not found")

	// ErrSectionNotEligible indicates the section's status does not allow
	// generation to start (for example it is still pending chapter selection).
	ErrSectionNotEligible = errors.New("section is not eligible for generation")

	// ErrGenerationInProgress indicates another invocation currently holds the
	// section's generation claim. API layer should map this to HTTP 409 Conflict.
	ErrGenerationInProgress = errors.New("generation already in progress for section")

	// ErrSectionFinalized indicates the section was externally approved and is
	// read-only.
	ErrSectionFinalized = errors.New("section is finalized and read-only")

	// ErrGenerationFailed indicates generation failed before any batch was
	// accepted; the section keeps its diagnostic for a manual retry.
	ErrGenerationFailed = errors.New("generation failed before any batch succeeded")
)

// GenerationError wraps errors from the generation service with context.
type GenerationError struct {
	// Operation is the operation that failed (e.g., "run_batch", "finalize")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for GenerationError.
func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("generation %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError creates a new GenerationError.
// It returns known sentinel errors directly without wrapping.
func NewGenerationError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrSectionNotFound) ||
		errors.Is(err, ErrSectionNotEligible) ||
		errors.Is(err, ErrGenerationInProgress) ||
		errors.Is(err, ErrSectionFinalized) {
		return err
	}

	return &GenerationError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
