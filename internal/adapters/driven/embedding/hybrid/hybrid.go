// Package hybrid routes embedding requests between a general-purpose
// model and a biomedical one based on text content. Biotech filings mix
// financial boilerplate with dense clinical language; a medical-domain
// model embeds the latter far better, but loading it costs memory, so
// it is created lazily on first biomedical text.
package hybrid

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/catalyst-labs/filingrag/internal/core/ports/driven"
	"github.com/catalyst-labs/filingrag/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// bioKeywordThreshold is how many distinct biomedical keywords a text
// needs before it is routed to the biomedical model.
const bioKeywordThreshold = 3

// bioKeywords identify clinical and regulatory language.
var bioKeywords = []string{
	"clinical trial", "phase", "efficacy", "adverse event",
	"patient", "treatment", "therapy", "drug", "indication",
	"fda", "endpoint", "placebo", "randomized", "dose",
}

// Factory creates the biomedical embedding service on first use.
type Factory func() (driven.EmbeddingService, error)

// EmbeddingService wraps a general model and a lazily created
// biomedical model. The two must produce vectors of the same dimension;
// if the biomedical model disagrees, routing falls back to the general
// model for everything.
type EmbeddingService struct {
	general driven.EmbeddingService

	mu         sync.Mutex
	bioFactory Factory
	bio        driven.EmbeddingService
	bioBroken  bool
}

// New creates a hybrid service. bioFactory may be nil, in which case
// all texts use the general model.
func New(general driven.EmbeddingService, bioFactory Factory) *EmbeddingService {
	return &EmbeddingService{
		general:    general,
		bioFactory: bioFactory,
	}
}

// IsBiomedical reports whether text reads as primarily clinical
// content: at least bioKeywordThreshold distinct keywords present.
func IsBiomedical(text string) bool {
	lower := strings.ToLower(text)
	count := 0
	for _, kw := range bioKeywords {
		if strings.Contains(lower, kw) {
			count++
			if count >= bioKeywordThreshold {
				return true
			}
		}
	}
	return false
}

// bioService returns the biomedical model, creating it on first call.
// A factory error or a dimension mismatch disables biomedical routing
// for the lifetime of the service.
func (s *EmbeddingService) bioService() driven.EmbeddingService {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bio != nil {
		return s.bio
	}
	if s.bioBroken || s.bioFactory == nil {
		return nil
	}

	logger.Info("loading biomedical embedding model")
	bio, err := s.bioFactory()
	if err != nil {
		logger.Warn("biomedical model unavailable, using general model only: %v", err)
		s.bioBroken = true
		return nil
	}
	if bio.Dimensions() != s.general.Dimensions() {
		logger.Warn("biomedical model dimension %d does not match general %d, using general model only",
			bio.Dimensions(), s.general.Dimensions())
		bio.Close()
		s.bioBroken = true
		return nil
	}

	s.bio = bio
	return bio
}

// route picks the service for one text.
func (s *EmbeddingService) route(text string) driven.EmbeddingService {
	if !IsBiomedical(text) {
		return s.general
	}
	if bio := s.bioService(); bio != nil {
		return bio
	}
	return s.general
}

// Embed embeds one text with whichever model fits its content.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.route(text).Embed(ctx, text)
}

// EmbedBatch splits texts by content, embeds each group with its model,
// and reassembles results in input order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var bioIdx, genIdx []int
	for i, t := range texts {
		if IsBiomedical(t) {
			bioIdx = append(bioIdx, i)
		} else {
			genIdx = append(genIdx, i)
		}
	}

	bio := driven.EmbeddingService(nil)
	if len(bioIdx) > 0 {
		bio = s.bioService()
	}
	if bio == nil {
		genIdx = append(genIdx, bioIdx...)
		bioIdx = nil
	}

	out := make([][]float32, len(texts))
	embed := func(svc driven.EmbeddingService, idx []int) error {
		if len(idx) == 0 {
			return nil
		}
		group := make([]string, len(idx))
		for j, i := range idx {
			group[j] = texts[i]
		}
		vecs, err := svc.EmbedBatch(ctx, group)
		if err != nil {
			return err
		}
		if len(vecs) != len(idx) {
			return fmt.Errorf("embedding count %d does not match input count %d", len(vecs), len(idx))
		}
		for j, i := range idx {
			out[i] = vecs[j]
		}
		return nil
	}

	if err := embed(s.general, genIdx); err != nil {
		return nil, err
	}
	if err := embed(bio, bioIdx); err != nil {
		return nil, err
	}

	logger.Debug("hybrid encoding: %d biomedical, %d general", len(bioIdx), len(genIdx))
	return out, nil
}

// EmbedQuery routes a query the same way as passages so queries about
// clinical content land in the space their passages were embedded in.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return s.route(query).EmbedQuery(ctx, query)
}

// Dimensions returns the shared embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.general.Dimensions()
}

// ModelName names the routing scheme with the general model.
func (s *EmbeddingService) ModelName() string {
	return "hybrid/" + s.general.ModelName()
}

// Ping checks the general model only; the biomedical one is optional
// until content requires it.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.general.Ping(ctx)
}

// Close releases both models.
func (s *EmbeddingService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.general.Close()
	if s.bio != nil {
		if berr := s.bio.Close(); err == nil {
			err = berr
		}
	}
	return err
}
