package auth

import "errors"

// Token validation errors. Handlers map these to 401 responses; any other
// failure from the validator is treated as internal.
var (
	ErrInvalidToken     = errors.New("invalid authentication token")
	ErrExpiredToken     = errors.New("authentication token has expired")
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")
	ErrMissingToken     = errors.New("authentication token is missing")
)
