package services

import (
	"context"
	"fmt"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
	"github.com/catalyst-labs/filingrag/internal/core/ports/driven"
	"github.com/catalyst-labs/filingrag/internal/core/ports/driving"
	"github.com/catalyst-labs/filingrag/internal/logger"
	"github.com/catalyst-labs/filingrag/internal/processor"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// saveInterval is how many chunks may accumulate before the index is
// persisted mid-batch, bounding loss if a long run dies.
const saveInterval = 10000

// IndexService runs the batch pipeline: enumerate a company's filings,
// chunk and embed each one, and add the vectors to the index.
//
// Callers own cross-process exclusion: acquire the index writer lock
// before indexing.
type IndexService struct {
	index       driven.VectorIndex
	embedder    driven.EmbeddingService
	filingStore driven.FilingStore
	processor   *processor.Processor

	chunksSinceSave int
}

// NewIndexService creates a new batch indexing service.
func NewIndexService(
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	filingStore driven.FilingStore,
	proc *processor.Processor,
) *IndexService {
	if proc == nil {
		proc = processor.New()
	}
	return &IndexService{
		index:       index,
		embedder:    embedder,
		filingStore: filingStore,
		processor:   proc,
	}
}

// IndexCompanyFilings indexes a company's filings newest-first. A
// filing that fails to load, chunk or embed is recorded in
// FailedFilings and the batch continues; only index-wide failures
// (unknown company, cancelled context) abort.
func (s *IndexService) IndexCompanyFilings(
	ctx context.Context, companyID int64, filingTypes []string, limit int,
) (*domain.BatchStats, error) {
	company, err := s.filingStore.CompanyByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("looking up company %d: %w", companyID, err)
	}

	filings, err := s.filingStore.FilingsByCompany(ctx, companyID, filingTypes, limit)
	if err != nil {
		return nil, fmt.Errorf("listing filings for %s: %w", company.Ticker, err)
	}

	logger.Info("indexing %d filings for %s", len(filings), company.Ticker)

	stats := &domain.BatchStats{
		CompanyTicker: company.Ticker,
		TotalFilings:  len(filings),
	}

	for _, filing := range filings {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		count, err := s.indexFiling(ctx, filing)
		if err != nil {
			logger.Error("indexing filing %s: %v", filing.AccessionNumber, err)
			stats.FailedFilings = append(stats.FailedFilings, filing.AccessionNumber)
			continue
		}
		if count == 0 {
			logger.Warn("no chunks created for filing %s", filing.AccessionNumber)
			stats.FailedFilings = append(stats.FailedFilings, filing.AccessionNumber)
			continue
		}

		stats.IndexedFilings++
		stats.TotalChunks += count
	}

	if err := s.index.Save(); err != nil {
		return stats, fmt.Errorf("saving index: %w", err)
	}
	s.chunksSinceSave = 0

	logger.Info("indexed %d/%d filings for %s (%d chunks, %d failed)",
		stats.IndexedFilings, stats.TotalFilings, company.Ticker,
		stats.TotalChunks, len(stats.FailedFilings))
	return stats, nil
}

// indexFiling chunks, embeds and indexes one filing, returning the
// number of chunks added.
func (s *IndexService) indexFiling(ctx context.Context, filing domain.Filing) (int, error) {
	if filing.FilePath == "" {
		return 0, fmt.Errorf("filing has no file path")
	}

	raw, err := s.processor.LoadFiling(filing.FilePath)
	if err != nil {
		return 0, fmt.Errorf("loading filing: %w", err)
	}

	chunks := s.processor.ChunkFiling(raw, domain.ChunkMeta{
		FilePath:        filing.FilePath,
		FilingID:        filing.ID,
		CompanyID:       filing.CompanyID,
		FilingType:      filing.FilingType,
		FilingDate:      filing.FilingDate,
		AccessionNumber: filing.AccessionNumber,
	})
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	metas := make([]domain.ChunkMeta, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		metas[i] = c.Meta
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}

	if _, err := s.index.Add(ctx, vectors, metas); err != nil {
		return 0, fmt.Errorf("adding to index: %w", err)
	}

	s.chunksSinceSave += len(chunks)
	if s.chunksSinceSave >= saveInterval {
		if err := s.index.Save(); err != nil {
			logger.Warn("mid-batch index save failed: %v", err)
		} else {
			s.chunksSinceSave = 0
		}
	}

	logger.Info("indexed %d chunks from filing %s", len(chunks), filing.AccessionNumber)
	return len(chunks), nil
}
