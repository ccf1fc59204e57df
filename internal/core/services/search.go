package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
	"github.com/catalyst-labs/filingrag/internal/core/ports/driven"
	"github.com/catalyst-labs/filingrag/internal/core/ports/driving"
	"github.com/catalyst-labs/filingrag/internal/logger"
	"github.com/catalyst-labs/filingrag/internal/processor"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// Sentinel texts returned when a chunk cannot be rehydrated. Results
// carry these instead of failing the whole search.
const (
	textMissingPath = "[Text not available - missing file path]"
	textLoadErrFmt  = "[Error loading text: %v]"
)

// rerankPool is how many times k the raw candidate pool grows when
// reranking, so keyword signals have extra candidates to promote.
const rerankPool = 3

// Rerank blend weights: embedding similarity, query word overlap, and
// exact phrase presence.
const (
	rerankWeightSimilarity = 0.5
	rerankWeightWords      = 0.3
	rerankWeightPhrase     = 0.2
	phraseMatchScore       = 10.0
)

// SearchService orchestrates the query path: embed the query, search
// the vector index, rehydrate chunk text from source filings, enrich
// results from the filing store, and optionally rerank.
type SearchService struct {
	index       driven.VectorIndex
	embedder    driven.EmbeddingService
	filingStore driven.FilingStore
	processor   *processor.Processor
}

// NewSearchService creates a new search service. The filing store is
// optional; without it results skip ticker and URL enrichment.
func NewSearchService(
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	filingStore driven.FilingStore,
	proc *processor.Processor,
) *SearchService {
	if proc == nil {
		proc = processor.New()
	}
	return &SearchService{
		index:       index,
		embedder:    embedder,
		filingStore: filingStore,
		processor:   proc,
	}
}

// Search runs a semantic query over the indexed chunks.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("empty query, returning no results")
		return []domain.SearchResult{}, nil
	}

	k := opts.K
	if k <= 0 {
		k = 10
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// Pull a larger pool when reranking so keyword evidence can promote
	// candidates the embedding ranked lower.
	fetch := k
	if opts.Rerank {
		fetch = k * rerankPool
	}

	// The index filters company and date; filing type is filtered here
	// because searches commonly ask for several types at once.
	hits, err := s.index.Search(ctx, queryVec, fetch, driven.VectorFilters{
		CompanyID: opts.CompanyID,
		DateAfter: opts.DateAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	logger.Debug("query %q: %d raw hits", query, len(hits))

	results := s.hydrate(ctx, s.filterTypes(hits, opts.FilingTypes))

	if opts.Rerank && len(results) > k {
		results = s.rerank(query, results)
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// SearchByTicker resolves ticker and searches that company's filings.
// An unknown ticker is not an error: it logs a warning and returns an
// empty slice, matching how an interactive caller wants to handle typos.
func (s *SearchService) SearchByTicker(
	ctx context.Context, query, ticker string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if s.filingStore == nil {
		return nil, fmt.Errorf("%w: no filing store configured", domain.ErrFilingStoreUnavailable)
	}

	company, err := s.filingStore.CompanyByTicker(ctx, ticker)
	if err != nil {
		logger.Warn("company %q not found", ticker)
		return []domain.SearchResult{}, nil
	}

	opts.CompanyID = company.ID
	return s.Search(ctx, query, opts)
}

// filterTypes keeps hits whose filing type is in the allow list.
func (s *SearchService) filterTypes(hits []domain.SearchHit, types []string) []domain.SearchHit {
	if len(types) == 0 {
		return hits
	}
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	kept := hits[:0]
	for _, h := range hits {
		if allowed[h.Meta.FilingType] {
			kept = append(kept, h)
		}
	}
	return kept
}

// hydrate turns raw hits into full results: chunk text from the source
// filing, company and URL fields from the filing store.
func (s *SearchService) hydrate(ctx context.Context, hits []domain.SearchHit) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		r := domain.SearchResult{SearchHit: h}
		r.Text = s.LoadChunkText(&r)

		if s.filingStore != nil && h.Meta.FilingID != 0 {
			if filing, err := s.filingStore.FilingByID(ctx, h.Meta.FilingID); err == nil {
				r.FilingURL = filing.FilingURL
				if company, err := s.filingStore.CompanyByID(ctx, filing.CompanyID); err == nil {
					r.CompanyTicker = company.Ticker
					r.CompanyName = company.Name
				}
			}
		}
		results = append(results, r)
	}
	return results
}

// LoadChunkText rehydrates a chunk's text by reopening its source
// filing and slicing the stored character range out of the cleaned
// text. Failures produce sentinel text, never an error.
func (s *SearchService) LoadChunkText(result *domain.SearchResult) string {
	meta := result.Meta
	if meta.FilePath == "" {
		return textMissingPath
	}

	raw, err := s.processor.LoadFiling(meta.FilePath)
	if err != nil {
		logger.Error("loading chunk text from %s: %v", meta.FilePath, err)
		return fmt.Sprintf(textLoadErrFmt, err)
	}

	cleaned := processor.Clean(raw)
	start, end := clampRange(meta.CharStart, meta.CharEnd, len(cleaned))
	return strings.TrimSpace(cleaned[start:end])
}

// ContextWindow expands a result's span by window characters on each
// side. Ellipsis markers show where the document continues.
func (s *SearchService) ContextWindow(result *domain.SearchResult, window int) string {
	meta := result.Meta
	if meta.FilePath == "" {
		return result.Text
	}
	if window <= 0 {
		window = 1000
	}

	raw, err := s.processor.LoadFiling(meta.FilePath)
	if err != nil {
		logger.Error("loading context from %s: %v", meta.FilePath, err)
		return result.Text
	}
	cleaned := processor.Clean(raw)

	start, end := clampRange(meta.CharStart-window, meta.CharEnd+window, len(cleaned))
	context := strings.TrimSpace(cleaned[start:end])
	if start > 0 {
		context = "..." + context
	}
	if end < len(cleaned) {
		context = context + "..."
	}
	return context
}

// FindSimilar returns the k chunks nearest to an indexed chunk,
// excluding the chunk itself.
func (s *SearchService) FindSimilar(ctx context.Context, chunkID int64, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = 5
	}

	vec, err := s.index.Reconstruct(chunkID)
	if err != nil {
		return nil, fmt.Errorf("reconstructing chunk %d: %w", chunkID, err)
	}

	hits, err := s.index.Search(ctx, vec, k+1, driven.VectorFilters{})
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	kept := hits[:0]
	for _, h := range hits {
		if h.ID == chunkID {
			continue
		}
		kept = append(kept, h)
	}
	if len(kept) > k {
		kept = kept[:k]
	}
	return s.hydrate(ctx, kept), nil
}

// Stats reports combined index and model statistics.
func (s *SearchService) Stats() domain.EngineStats {
	return domain.EngineStats{
		IndexStats:     s.index.Stats(),
		EmbeddingModel: s.embedder.ModelName(),
	}
}

// rerank blends embedding similarity with lexical evidence and sorts
// descending by the blended score.
func (s *SearchService) rerank(query string, results []domain.SearchResult) []domain.SearchResult {
	queryWords := strings.Fields(strings.ToLower(query))
	if len(queryWords) == 0 {
		return results
	}
	queryLower := strings.ToLower(query)

	for i := range results {
		textLower := strings.ToLower(results[i].Text)

		wordHits := 0
		for _, w := range queryWords {
			if strings.Contains(textLower, w) {
				wordHits++
			}
		}

		var phraseScore float64
		if strings.Contains(textLower, queryLower) {
			phraseScore = phraseMatchScore
		}

		// L2 distance converts to a similarity in (0, 1].
		similarity := 1.0 / (1.0 + float64(results[i].Distance))

		results[i].RerankScore = similarity*rerankWeightSimilarity +
			(float64(wordHits)/float64(len(queryWords)))*rerankWeightWords +
			phraseScore*rerankWeightPhrase
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RerankScore > results[j].RerankScore
	})
	return results
}

func clampRange(start, end, length int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end <= 0 || end > length {
		end = length
	}
	if start > end {
		start = end
	}
	return start, end
}
