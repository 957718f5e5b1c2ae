package shared

import "errors"

// Errors shared across modules. Domain packages wrap them with %w and the
// HTTP layer maps them to problem responses.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrScopeRequired indicates a call without a business.
	ErrScopeRequired = errors.New("scope: business required")

	// ErrIdempotencyConflict indicates the key was already processed.
	ErrIdempotencyConflict = errors.New("idempotent request already processed")
)
