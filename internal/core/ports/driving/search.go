package driving

import (
	"context"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
)

// SearchService is the query-path surface exposed to consumers.
type SearchService interface {
	// Search runs a semantic query and returns enriched, rehydrated
	// results. An empty index yields an empty slice, never an error.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// SearchByTicker resolves ticker to a company id and searches
	// within that company's filings. Unknown tickers yield an empty
	// result slice with a warning log.
	SearchByTicker(ctx context.Context, query, ticker string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// LoadChunkText rehydrates a result's text from its source filing.
	LoadChunkText(result *domain.SearchResult) string

	// ContextWindow returns the result's span expanded by window
	// characters on each side, with ellipsis markers at document edges.
	ContextWindow(result *domain.SearchResult, window int) string

	// FindSimilar returns chunks nearest to an already-indexed chunk.
	FindSimilar(ctx context.Context, chunkID int64, k int) ([]domain.SearchResult, error)

	// Stats reports index and embedding-model statistics.
	Stats() domain.EngineStats
}

// IndexService is the batch indexing surface used by offline jobs.
type IndexService interface {
	// IndexCompanyFilings chunks, embeds and indexes a company's
	// filings. Single-filing failures are collected, never fatal.
	IndexCompanyFilings(ctx context.Context, companyID int64, filingTypes []string, limit int) (*domain.BatchStats, error)
}
