package driven

import (
	"context"
	"time"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
)

// VectorFilters restricts a vector search to matching metadata.
// Zero values mean "no filter".
type VectorFilters struct {
	// CompanyID restricts hits to one company.
	CompanyID int64

	// FilingType restricts hits to one SEC form type.
	FilingType string

	// DateAfter excludes hits whose filing date is strictly before it.
	DateAfter time.Time
}

// VectorIndex is the approximate-nearest-neighbour structure storing one
// vector plus lightweight metadata per chunk. It owns the id space:
// ids are sequential, strictly increasing, and never reused.
//
// The index provides no internal locking. One writer at a time; readers
// may run concurrently with each other but not with a writer.
type VectorIndex interface {
	// Add appends vectors with their metadata. While the index is
	// untrained the inputs are buffered and the returned id slice is
	// empty; ids are assigned at the deferred training commit. Once
	// trained, ids are returned immediately in input order.
	Add(ctx context.Context, vectors [][]float32, metas []domain.ChunkMeta) ([]int64, error)

	// Search returns up to k hits ordered by ascending distance,
	// post-filtered by f. An empty index returns an empty slice.
	Search(ctx context.Context, query []float32, k int, f VectorFilters) ([]domain.SearchHit, error)

	// Reconstruct returns the stored (possibly lossily decoded) vector
	// for an id.
	Reconstruct(id int64) ([]float32, error)

	// RemoveCompany hides all of a company's entries and reports how
	// many were hidden. ANN storage is not reclaimed until a rebuild.
	RemoveCompany(companyID int64) int

	// Save persists the index artifacts. A warned no-op while untrained.
	Save() error

	// Trained reports whether the codebooks have been fit.
	Trained() bool

	// Stats reports vector, chunk, company and filing-type counts.
	Stats() domain.IndexStats

	// Close releases resources.
	Close() error
}
