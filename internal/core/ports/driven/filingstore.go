package driven

import (
	"context"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
)

// FilingStore is the boundary to the relational store that owns company
// and filing records. The retrieval core reads it for ticker resolution,
// batch-indexing enumeration, and result display fields.
type FilingStore interface {
	// CompanyByTicker resolves a ticker symbol (case-insensitive) to a
	// company record. Returns domain.ErrNotFound for unknown tickers.
	CompanyByTicker(ctx context.Context, ticker string) (*domain.Company, error)

	// CompanyByID fetches a company record by id.
	CompanyByID(ctx context.Context, id int64) (*domain.Company, error)

	// Companies lists all known companies ordered by ticker.
	Companies(ctx context.Context) ([]domain.Company, error)

	// FilingByID fetches a filing record by id.
	FilingByID(ctx context.Context, id int64) (*domain.Filing, error)

	// FilingsByCompany lists a company's filings newest-first,
	// optionally restricted to the given form types and capped at limit
	// (0 = no cap).
	FilingsByCompany(ctx context.Context, companyID int64, filingTypes []string, limit int) ([]domain.Filing, error)

	// SaveCompany inserts or updates a company record.
	SaveCompany(ctx context.Context, c *domain.Company) error

	// SaveFiling inserts or updates a filing record.
	SaveFiling(ctx context.Context, f *domain.Filing) error

	// Close closes the underlying database.
	Close() error
}
