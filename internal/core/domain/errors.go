package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch indicates a vector's width does not match the
	// index's configured dimension. This is a contract error and fails
	// fast at construction or add time, never at first search.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexCorrupt indicates persisted index artifacts failed their
	// mutual consistency checks. Loaders recover by starting fresh.
	ErrIndexCorrupt = errors.New("index artifacts inconsistent")

	// ErrIndexLocked indicates another process holds the index writer
	// lock. Only one indexing job may mutate the on-disk index at a time.
	ErrIndexLocked = errors.New("index locked by another writer")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Semantic search is impossible without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrFilingStoreUnavailable indicates the filing store is not
	// configured. Ticker resolution and batch indexing are disabled.
	ErrFilingStoreUnavailable = errors.New("filing store unavailable")
)
