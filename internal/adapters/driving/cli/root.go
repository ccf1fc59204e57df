// Package cli implements the filingrag command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catalyst-labs/filingrag/internal/adapters/driven/embedding"
	"github.com/catalyst-labs/filingrag/internal/adapters/driven/embedding/hybrid"
	"github.com/catalyst-labs/filingrag/internal/adapters/driven/embedding/ollama"
	"github.com/catalyst-labs/filingrag/internal/adapters/driven/embedding/openai"
	"github.com/catalyst-labs/filingrag/internal/adapters/driven/storage/sqlite"
	"github.com/catalyst-labs/filingrag/internal/config"
	"github.com/catalyst-labs/filingrag/internal/core/ports/driven"
	"github.com/catalyst-labs/filingrag/internal/core/services"
	"github.com/catalyst-labs/filingrag/internal/index/ivfpq"
	"github.com/catalyst-labs/filingrag/internal/logger"
	"github.com/catalyst-labs/filingrag/internal/processor"
)

var version = "dev"

var (
	flagConfigDir string
	flagVerbose   bool
)

// Wired application components, built on demand by requireEngine.
var (
	cfg           *config.Config
	filingStore   driven.FilingStore
	vectorIndex   driven.VectorIndex
	embedder      driven.EmbeddingService
	searchService *services.SearchService
	indexService  *services.IndexService
)

var rootCmd = &cobra.Command{
	Use:   "filingrag",
	Short: "Semantic search over SEC filings",
	Long: `filingrag indexes SEC filings for biotech companies and answers
semantic queries over them. Filings are chunked along document sections,
embedded, and stored in an on-disk vector index; searches rehydrate
matching chunk text directly from the source filings.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(flagVerbose)
		var err error
		cfg, err = config.Load(flagConfigDir)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config", "", "config directory (default ~/.filingrag)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
}

// SetVersion sets the version string reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	defer teardown()
	return rootCmd.Execute()
}

// requireEngine wires the full stack: filing store, embedding service,
// vector index and the two core services. Commands that only touch
// configuration skip this.
func requireEngine() error {
	if searchService != nil {
		return nil
	}

	store, err := sqlite.NewStore(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("opening filing store: %w", err)
	}
	filingStore = store

	embedder, err = buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("configuring embedding service: %w", err)
	}

	vectorIndex, err = ivfpq.New(ivfpq.Config{
		Dim:         embedder.Dimensions(),
		Dir:         cfg.IndexDir(),
		NList:       cfg.Index.NList,
		NProbe:      cfg.Index.NProbe,
		UsePQ:       cfg.Index.UsePQ,
		M:           cfg.Index.M,
		TrainFactor: cfg.Index.TrainFactor,
	})
	if err != nil {
		return fmt.Errorf("opening vector index: %w", err)
	}

	proc := processor.New(
		processor.WithChunkSize(cfg.Chunking.ChunkSize),
		processor.WithOverlap(cfg.Chunking.Overlap),
		processor.WithMinSection(cfg.Chunking.MinSection),
	)

	searchService = services.NewSearchService(vectorIndex, embedder, filingStore, proc)
	indexService = services.NewIndexService(vectorIndex, embedder, filingStore, proc)
	return nil
}

// buildEmbedder constructs the configured embedding backend, optionally
// wrapped in the hybrid biomedical router.
func buildEmbedder(cfg *config.Config) (driven.EmbeddingService, error) {
	rateLimit := embedding.RateLimitConfig{
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		BurstSize:         cfg.Embedding.Burst,
	}

	build := func(model string) (driven.EmbeddingService, error) {
		switch cfg.Embedding.Backend {
		case "", "ollama":
			return ollama.NewEmbeddingService(ollama.Config{
				BaseURL:    cfg.Embedding.BaseURL,
				Model:      model,
				Dimensions: cfg.Embedding.Dimensions,
				RateLimit:  rateLimit,
			}), nil
		case "openai":
			return openai.NewEmbeddingService(openai.Config{
				APIKey:     cfg.Embedding.APIKey(),
				BaseURL:    cfg.Embedding.BaseURL,
				Model:      model,
				Dimensions: cfg.Embedding.Dimensions,
				RateLimit:  rateLimit,
			})
		default:
			return nil, fmt.Errorf("unknown embedding backend %q", cfg.Embedding.Backend)
		}
	}

	general, err := build(cfg.Embedding.Model)
	if err != nil {
		return nil, err
	}

	if !cfg.Embedding.Hybrid {
		return general, nil
	}
	bioModel := cfg.Embedding.BioModel
	return hybrid.New(general, func() (driven.EmbeddingService, error) {
		return build(bioModel)
	}), nil
}

// teardown closes whatever requireEngine opened.
func teardown() {
	if vectorIndex != nil {
		if err := vectorIndex.Close(); err != nil {
			logger.Warn("closing index: %v", err)
		}
	}
	if embedder != nil {
		embedder.Close()
	}
	if filingStore != nil {
		filingStore.Close()
	}
}
