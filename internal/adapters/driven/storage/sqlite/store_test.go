package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveCompanyAssignsIDAndUppercasesTicker(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := domain.Company{Ticker: "vrtx", Name: "Vertex Pharmaceuticals"}
	require.NoError(t, s.SaveCompany(ctx, &c))
	assert.NotZero(t, c.ID)
	assert.Equal(t, "VRTX", c.Ticker)

	// Saving again is an upsert, not a duplicate.
	again := domain.Company{Ticker: "VRTX", Name: "Vertex Pharmaceuticals Inc"}
	require.NoError(t, s.SaveCompany(ctx, &again))
	assert.Equal(t, c.ID, again.ID)

	all, err := s.Companies(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Vertex Pharmaceuticals Inc", all[0].Name)
}

func TestCompanyLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := domain.Company{Ticker: "MRNA", Name: "Moderna"}
	require.NoError(t, s.SaveCompany(ctx, &c))

	byTicker, err := s.CompanyByTicker(ctx, "mrna")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byTicker.ID)

	byID, err := s.CompanyByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "MRNA", byID.Ticker)

	_, err = s.CompanyByTicker(ctx, "NOPE")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.CompanyByID(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveCompanyRequiresTicker(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveCompany(context.Background(), &domain.Company{Name: "No Ticker"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSaveFilingUpsertsByAccessionNumber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := domain.Company{Ticker: "VRTX"}
	require.NoError(t, s.SaveCompany(ctx, &c))

	f := domain.Filing{
		CompanyID:       c.ID,
		FilingType:      "10-K",
		FilingDate:      time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		AccessionNumber: "0000875320-24-000012",
		FilePath:        "/data/filings/vrtx/10-K.txt.gz",
		FilingURL:       "https://www.sec.gov/Archives/edgar/data/875320/1.htm",
	}
	require.NoError(t, s.SaveFiling(ctx, &f))
	assert.NotZero(t, f.ID)

	// Same accession number updates in place.
	update := f
	update.ID = 0
	update.FilePath = "/data/filings/vrtx/10-K-v2.txt.gz"
	require.NoError(t, s.SaveFiling(ctx, &update))
	assert.Equal(t, f.ID, update.ID)

	got, err := s.FilingByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "/data/filings/vrtx/10-K-v2.txt.gz", got.FilePath)
	assert.True(t, got.FilingDate.Equal(f.FilingDate))
}

func TestFilingsByCompanyOrderingAndFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := domain.Company{Ticker: "VRTX"}
	require.NoError(t, s.SaveCompany(ctx, &c))
	other := domain.Company{Ticker: "MRNA"}
	require.NoError(t, s.SaveCompany(ctx, &other))

	dates := []time.Time{
		time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	types := []string{"10-K", "10-Q", "8-K"}
	for i := range dates {
		f := domain.Filing{
			CompanyID:       c.ID,
			FilingType:      types[i],
			FilingDate:      dates[i],
			AccessionNumber: "acc-" + types[i],
			FilePath:        "/data/f.txt.gz",
		}
		require.NoError(t, s.SaveFiling(ctx, &f))
	}
	require.NoError(t, s.SaveFiling(ctx, &domain.Filing{
		CompanyID:       other.ID,
		FilingType:      "10-K",
		FilingDate:      dates[0],
		AccessionNumber: "acc-other",
		FilePath:        "/data/g.txt.gz",
	}))

	// Newest first, scoped to the company.
	all, err := s.FilingsByCompany(ctx, c.ID, nil, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "10-Q", all[0].FilingType)
	assert.Equal(t, "8-K", all[1].FilingType)
	assert.Equal(t, "10-K", all[2].FilingType)

	// Type filter.
	annuals, err := s.FilingsByCompany(ctx, c.ID, []string{"10-K", "10-Q"}, 0)
	require.NoError(t, err)
	require.Len(t, annuals, 2)

	// Limit.
	capped, err := s.FilingsByCompany(ctx, c.ID, nil, 1)
	require.NoError(t, err)
	require.Len(t, capped, 1)
	assert.Equal(t, "10-Q", capped[0].FilingType)
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, s1.SaveCompany(context.Background(), &domain.Company{Ticker: "VRTX"}))
	require.NoError(t, s1.Close())

	// Reopening re-runs migrate against the existing schema.
	s2, err := NewStore(dir)
	require.NoError(t, err)
	defer s2.Close()

	c, err := s2.CompanyByTicker(context.Background(), "VRTX")
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
}
