package services

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
	"github.com/catalyst-labs/filingrag/internal/core/ports/driven"
)

// mockIndex is a hand-rolled VectorIndex double.
type mockIndex struct {
	hits        []domain.SearchHit
	vectors     map[int64][]float32
	stats       domain.IndexStats
	lastK       int
	lastFilters driven.VectorFilters
	added       [][]float32
	addedMetas  []domain.ChunkMeta
	saves       int
}

func (m *mockIndex) Add(_ context.Context, vectors [][]float32, metas []domain.ChunkMeta) ([]int64, error) {
	ids := make([]int64, len(vectors))
	for i := range vectors {
		ids[i] = int64(len(m.added))
		m.added = append(m.added, vectors[i])
		m.addedMetas = append(m.addedMetas, metas[i])
	}
	return ids, nil
}

func (m *mockIndex) Search(_ context.Context, _ []float32, k int, f driven.VectorFilters) ([]domain.SearchHit, error) {
	m.lastK = k
	m.lastFilters = f
	hits := m.hits
	if f.CompanyID != 0 {
		kept := make([]domain.SearchHit, 0, len(hits))
		for _, h := range hits {
			if h.Meta.CompanyID == f.CompanyID {
				kept = append(kept, h)
			}
		}
		hits = kept
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *mockIndex) Reconstruct(id int64) ([]float32, error) {
	v, ok := m.vectors[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *mockIndex) RemoveCompany(int64) int { return 0 }

func (m *mockIndex) Save() error { m.saves++; return nil }

func (m *mockIndex) Trained() bool { return true }

func (m *mockIndex) Stats() domain.IndexStats { return m.stats }

func (m *mockIndex) Close() error { return nil }

var _ driven.VectorIndex = (*mockIndex)(nil)

// mockEmbedder is a hand-rolled EmbeddingService double.
type mockEmbedder struct {
	queries []string
	texts   []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.texts = append(m.texts, text)
	return []float32{1, 0, 0, 0}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) EmbedQuery(_ context.Context, query string) ([]float32, error) {
	m.queries = append(m.queries, query)
	return []float32{1, 0, 0, 0}, nil
}

func (m *mockEmbedder) Dimensions() int { return 4 }

func (m *mockEmbedder) ModelName() string { return "mock-model" }

func (m *mockEmbedder) Ping(_ context.Context) error { return nil }

func (m *mockEmbedder) Close() error { return nil }

var _ driven.EmbeddingService = (*mockEmbedder)(nil)

// mockFilingStore is a hand-rolled FilingStore double.
type mockFilingStore struct {
	companies map[int64]domain.Company
	byTicker  map[string]domain.Company
	filings   map[int64]domain.Filing
}

func newMockFilingStore() *mockFilingStore {
	return &mockFilingStore{
		companies: make(map[int64]domain.Company),
		byTicker:  make(map[string]domain.Company),
		filings:   make(map[int64]domain.Filing),
	}
}

func (m *mockFilingStore) addCompany(c domain.Company) {
	m.companies[c.ID] = c
	m.byTicker[strings.ToUpper(c.Ticker)] = c
}

func (m *mockFilingStore) CompanyByTicker(_ context.Context, ticker string) (*domain.Company, error) {
	c, ok := m.byTicker[strings.ToUpper(ticker)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *mockFilingStore) CompanyByID(_ context.Context, id int64) (*domain.Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *mockFilingStore) Companies(_ context.Context) ([]domain.Company, error) {
	var out []domain.Company
	for _, c := range m.companies {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockFilingStore) FilingByID(_ context.Context, id int64) (*domain.Filing, error) {
	f, ok := m.filings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &f, nil
}

func (m *mockFilingStore) FilingsByCompany(_ context.Context, companyID int64, types []string, limit int) ([]domain.Filing, error) {
	var out []domain.Filing
	for _, f := range m.filings {
		if f.CompanyID != companyID {
			continue
		}
		if len(types) > 0 {
			ok := false
			for _, t := range types {
				if f.FilingType == t {
					ok = true
				}
			}
			if !ok {
				continue
			}
		}
		out = append(out, f)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockFilingStore) SaveCompany(_ context.Context, c *domain.Company) error {
	m.addCompany(*c)
	return nil
}

func (m *mockFilingStore) SaveFiling(_ context.Context, f *domain.Filing) error {
	m.filings[f.ID] = *f
	return nil
}

func (m *mockFilingStore) Close() error { return nil }

var _ driven.FilingStore = (*mockFilingStore)(nil)

// writeFilingFile writes gzip-compressed filing text and returns its path.
func writeFilingFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

// filingText is already in cleaned form, so character offsets into it
// survive the rehydration path unchanged.
const filingText = "The phase 3 trial met its primary endpoint. Revenue grew strongly during the fiscal year. Management expects continued enrollment growth."

func TestSearchEmptyQuery(t *testing.T) {
	embedder := &mockEmbedder{}
	svc := NewSearchService(&mockIndex{}, embedder, nil, nil)

	results, err := svc.Search(context.Background(), "   ", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, embedder.queries, "no embedding call for empty query")
}

func TestSearchHydratesAndEnriches(t *testing.T) {
	dir := t.TempDir()
	path := writeFilingFile(t, dir, "10-K.txt.gz", filingText)

	idx := &mockIndex{hits: []domain.SearchHit{{
		ID:       3,
		Distance: 0.2,
		Meta: domain.ChunkMeta{
			FilePath:  path,
			CharStart: 0,
			CharEnd:   43,
			FilingID:  11,
			CompanyID: 1,
		},
	}}}
	store := newMockFilingStore()
	store.addCompany(domain.Company{ID: 1, Ticker: "VRTX", Name: "Vertex Pharmaceuticals"})
	store.filings[11] = domain.Filing{
		ID: 11, CompanyID: 1, FilingType: "10-K",
		FilingURL: "https://www.sec.gov/filing.htm",
	}

	svc := NewSearchService(idx, &mockEmbedder{}, store, nil)
	results, err := svc.Search(context.Background(), "trial endpoint", domain.SearchOptions{K: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "The phase 3 trial met its primary endpoint.", r.Text)
	assert.Equal(t, "VRTX", r.CompanyTicker)
	assert.Equal(t, "Vertex Pharmaceuticals", r.CompanyName)
	assert.Equal(t, "https://www.sec.gov/filing.htm", r.FilingURL)
}

func TestSearchFilingTypeFilterClientSide(t *testing.T) {
	hit := func(ft string) domain.SearchHit {
		return domain.SearchHit{Meta: domain.ChunkMeta{FilingType: ft}}
	}
	idx := &mockIndex{hits: []domain.SearchHit{hit("10-K"), hit("8-K"), hit("10-Q")}}
	svc := NewSearchService(idx, &mockEmbedder{}, nil, nil)

	results, err := svc.Search(context.Background(), "dilution",
		domain.SearchOptions{K: 10, FilingTypes: []string{"10-K", "10-Q"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, "8-K", r.Meta.FilingType)
	}
	// Type filtering happens after the index call.
	assert.Empty(t, idx.lastFilters.FilingType)
}

func TestSearchPassesCompanyAndDateFiltersToIndex(t *testing.T) {
	idx := &mockIndex{}
	svc := NewSearchService(idx, &mockEmbedder{}, nil, nil)
	after := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Search(context.Background(), "guidance",
		domain.SearchOptions{K: 4, CompanyID: 9, DateAfter: after, Rerank: true})
	require.NoError(t, err)

	assert.Equal(t, int64(9), idx.lastFilters.CompanyID)
	assert.True(t, idx.lastFilters.DateAfter.Equal(after))
	assert.Equal(t, 12, idx.lastK, "rerank over-fetches three times k")
}

func TestRerankPromotesExactPhrase(t *testing.T) {
	dir := t.TempDir()
	phrasePath := writeFilingFile(t, dir, "a.txt.gz",
		"The company announced positive results from its pivotal study this week and more.")
	otherPath := writeFilingFile(t, dir, "b.txt.gz",
		"General corporate overhead decreased relative to the prior period in total.")

	idx := &mockIndex{hits: []domain.SearchHit{
		// Closer by embedding distance but lexically unrelated.
		{ID: 1, Distance: 0.1, Meta: domain.ChunkMeta{FilePath: otherPath, CharStart: 0, CharEnd: 74}},
		{ID: 2, Distance: 0.4, Meta: domain.ChunkMeta{FilePath: phrasePath, CharStart: 0, CharEnd: 81}},
	}}
	svc := NewSearchService(idx, &mockEmbedder{}, nil, nil)

	results, err := svc.Search(context.Background(), "pivotal study",
		domain.SearchOptions{K: 1, Rerank: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID, "phrase match outranks raw distance")
	assert.Greater(t, results[0].RerankScore, 0.0)
}

func TestLoadChunkTextSentinels(t *testing.T) {
	svc := NewSearchService(&mockIndex{}, &mockEmbedder{}, nil, nil)

	missing := domain.SearchResult{}
	assert.Equal(t, textMissingPath, svc.LoadChunkText(&missing))

	broken := domain.SearchResult{SearchHit: domain.SearchHit{
		Meta: domain.ChunkMeta{FilePath: filepath.Join(t.TempDir(), "gone.txt.gz")},
	}}
	assert.True(t, strings.HasPrefix(svc.LoadChunkText(&broken), "[Error loading text:"))
}

func TestContextWindow(t *testing.T) {
	dir := t.TempDir()
	path := writeFilingFile(t, dir, "f.txt.gz", filingText)

	svc := NewSearchService(&mockIndex{}, &mockEmbedder{}, nil, nil)
	r := domain.SearchResult{SearchHit: domain.SearchHit{
		Meta: domain.ChunkMeta{FilePath: path, CharStart: 44, CharEnd: 90},
	}}

	ctxText := svc.ContextWindow(&r, 10)
	assert.True(t, strings.HasPrefix(ctxText, "..."))
	assert.True(t, strings.HasSuffix(ctxText, "..."))
	assert.Contains(t, ctxText, "Revenue grew strongly")

	// A window covering the whole document drops the markers.
	full := svc.ContextWindow(&r, 10000)
	assert.False(t, strings.HasPrefix(full, "..."))
	assert.False(t, strings.HasSuffix(full, "..."))
}

func TestFindSimilarExcludesSelf(t *testing.T) {
	idx := &mockIndex{
		vectors: map[int64][]float32{5: {1, 0, 0, 0}},
		hits: []domain.SearchHit{
			{ID: 5, Distance: 0},
			{ID: 6, Distance: 0.1},
			{ID: 7, Distance: 0.2},
		},
	}
	svc := NewSearchService(idx, &mockEmbedder{}, nil, nil)

	results, err := svc.FindSimilar(context.Background(), 5, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(6), results[0].ID)
	assert.Equal(t, int64(7), results[1].ID)
}

func TestFindSimilarUnknownChunk(t *testing.T) {
	svc := NewSearchService(&mockIndex{vectors: map[int64][]float32{}}, &mockEmbedder{}, nil, nil)
	_, err := svc.FindSimilar(context.Background(), 42, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSearchByTicker(t *testing.T) {
	store := newMockFilingStore()
	store.addCompany(domain.Company{ID: 3, Ticker: "MRNA", Name: "Moderna"})
	idx := &mockIndex{hits: []domain.SearchHit{
		{ID: 1, Meta: domain.ChunkMeta{CompanyID: 3}},
		{ID: 2, Meta: domain.ChunkMeta{CompanyID: 4}},
	}}
	svc := NewSearchService(idx, &mockEmbedder{}, store, nil)

	results, err := svc.SearchByTicker(context.Background(), "vaccine revenue", "mrna", domain.SearchOptions{K: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(3), idx.lastFilters.CompanyID)

	// Unknown tickers are a soft failure.
	empty, err := svc.SearchByTicker(context.Background(), "anything", "NOPE", domain.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStats(t *testing.T) {
	idx := &mockIndex{stats: domain.IndexStats{TotalChunks: 12, Trained: true}}
	svc := NewSearchService(idx, &mockEmbedder{}, nil, nil)

	stats := svc.Stats()
	assert.Equal(t, 12, stats.TotalChunks)
	assert.Equal(t, "mock-model", stats.EmbeddingModel)
}
