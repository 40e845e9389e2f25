package generation

import "errors"

// Typed failures returned by the generation package. The retry wrapper keys
// its backoff policy off these classes.
var (
	// ErrParseFailure is returned when the model response was not well-formed
	// (unparseable JSON, missing questions array, schema mismatch).
	ErrParseFailure = errors.New("failed to parse response from language model")

	// ErrTimeout is returned when the provider call exceeded its deadline.
	ErrTimeout = errors.New("language model call timed out")

	// ErrAPIFailure is returned for any other provider-side error.
	ErrAPIFailure = errors.New("language model API call failed")

	// ErrContentBlocked is returned when the model blocks the content due to
	// safety filters. Not retried.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrInvalidConfig is returned when the generator configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generator configuration")
)
