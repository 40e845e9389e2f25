package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/examgen-api/internal/domain"
	"github.com/phrazzld/examgen-api/internal/service"
	"github.com/phrazzld/examgen-api/internal/service/auth"
	"github.com/phrazzld/examgen-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrNotOwned):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, service.ErrSectionNotFound),
		errors.Is(err, store.ErrSectionNotFound),
		errors.Is(err, store.ErrQuestionNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrGenerationInProgress),
		errors.Is(err, service.ErrSectionFinalized),
		errors.Is(err, service.ErrSectionNotEligible):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"

	case errors.Is(err, service.ErrNotOwned):
		return "You do not own this section"

	case errors.Is(err, service.ErrSectionNotFound), errors.Is(err, store.ErrSectionNotFound):
		return "Section not found"

	case errors.Is(err, store.ErrQuestionNotFound):
		return "Question not found"

	case errors.Is(err, service.ErrGenerationInProgress):
		return "Generation is already in progress for this section"

	case errors.Is(err, service.ErrSectionFinalized):
		return "Section is finalized and can no longer be modified"

	case errors.Is(err, service.ErrSectionNotEligible):
		return "Section is not ready for generation"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid request data"

	default:
		return "An unexpected error occurred"
	}
}
