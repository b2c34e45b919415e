package types

import "errors"

// Sentinel errors for common error conditions.
var (
	// ErrMediaUnreadable is returned when an image cannot be opened or
	// decoded. The offending file is skipped, not retried within the run.
	ErrMediaUnreadable = errors.New("media unreadable")

	// ErrStoreUnavailable is returned when the vector store cannot be
	// opened. Fatal at component construction time.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrNotFound is returned when a requested record is not found.
	ErrNotFound = errors.New("not found")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrDimensionMismatch is returned when a vector's dimensionality does
	// not match the store's configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")
)
