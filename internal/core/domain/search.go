package domain

import "time"

// PendingID is the id carried by search hits served from the index's
// pending (untrained) buffer. Real ids are only assigned once the index
// trains and commits the buffer.
const PendingID int64 = -1

// SearchHit is a raw nearest-neighbour hit from the vector index.
// It carries no text; the orchestrator rehydrates text on demand.
type SearchHit struct {
	// ID is the chunk id, or PendingID for hits from the pending buffer.
	ID int64

	// Distance is the squared L2 distance to the query vector.
	// Vectors are unit-normalised, so ordering is equivalent to cosine
	// similarity. Lower is better.
	Distance float32

	// Meta is a copy of the stored chunk metadata.
	Meta ChunkMeta
}

// SearchOptions configures an orchestrated search.
type SearchOptions struct {
	// CompanyID filters to one company. Zero means no filter.
	CompanyID int64

	// FilingTypes filters to the given form types. Empty means all.
	FilingTypes []string

	// DateAfter excludes filings dated strictly before it. Zero means
	// no date filter.
	DateAfter time.Time

	// K is the number of results to return (default 10).
	K int

	// Rerank enables the lexical blend rerank pass.
	Rerank bool
}

// SearchResult is one enriched, rehydrated search result returned to
// callers. It is ephemeral: built per query and discarded after return.
type SearchResult struct {
	// SearchHit is the underlying index hit.
	SearchHit

	// Text is the rehydrated chunk text (or a sentinel string when the
	// source filing is missing or unreadable).
	Text string

	// RerankScore is the blended lexical+vector score; higher is
	// better. Only populated when reranking was requested.
	RerankScore float64

	// CompanyTicker, CompanyName and FilingURL are display fields
	// resolved from the filing store. Empty when unresolvable.
	CompanyTicker string
	CompanyName   string
	FilingURL     string
}
