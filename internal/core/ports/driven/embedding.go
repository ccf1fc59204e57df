package driven

import "context"

// EmbeddingService maps text to fixed-width unit-normalised vectors.
//
// Callers must use EmbedQuery for search queries and EmbedBatch for
// documents: some model families apply a query-specific prefix, and
// mixing the two silently degrades relevance without erroring.
type EmbeddingService interface {
	// Embed generates a vector embedding for a single document text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving
	// input order. This is the indexing-time bulk path.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a search query, applying
	// any model-specific query prefix convention.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// Dimensions returns the embedding vector width.
	Dimensions() int

	// ModelName returns the name of the underlying model.
	ModelName() string

	// Ping validates the service is reachable without running inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
