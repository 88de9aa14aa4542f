package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrProviderUnavailable marks embedding-provider absence or failure;
	// the retrieval facade keys its keyword fallback off this sentinel.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
)
