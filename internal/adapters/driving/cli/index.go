package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/catalyst-labs/filingrag/internal/index"
)

var (
	indexTypes []string
	indexLimit int
)

var indexCmd = &cobra.Command{
	Use:   "index [ticker]",
	Short: "Index a company's filings",
	Long: `Chunks, embeds and indexes the stored filings of one company.
Only one indexer may run against an index directory at a time; the
command takes an exclusive writer lock for the duration.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringSliceVar(&indexTypes, "type", nil, "restrict to filing types (e.g. 10-K,10-Q)")
	indexCmd.Flags().IntVarP(&indexLimit, "limit", "n", 0, "maximum number of filings to index")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if err := requireEngine(); err != nil {
		return err
	}
	ticker := args[0]
	ctx := cmd.Context()

	lock, err := index.AcquireWriterLock(cfg.IndexDir())
	if err != nil {
		return err
	}
	defer lock.Release()

	company, err := filingStore.CompanyByTicker(ctx, ticker)
	if err != nil {
		return fmt.Errorf("unknown company %q: %w", ticker, err)
	}

	stats, err := indexService.IndexCompanyFilings(ctx, company.ID, indexTypes, indexLimit)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", ticker, err)
	}

	cmd.Printf("Indexed %d/%d filings for %s (%d chunks)\n",
		stats.IndexedFilings, stats.TotalFilings, stats.CompanyTicker, stats.TotalChunks)
	if len(stats.FailedFilings) > 0 {
		cmd.Printf("Failed filings: %s\n", strings.Join(stats.FailedFilings, ", "))
	}
	return nil
}
