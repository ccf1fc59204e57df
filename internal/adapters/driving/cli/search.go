package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
	"github.com/catalyst-labs/filingrag/internal/processor"
)

var (
	searchTicker  string
	searchTypes   []string
	searchAfter   string
	searchK       int
	searchRerank  bool
	searchJSON    bool
	searchContext int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed filings",
	Long: `Runs a semantic query over the indexed filing chunks.
Results are rehydrated from the source filings and can optionally be
reranked with lexical signals and expanded with surrounding context.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchTicker, "ticker", "t", "", "restrict to one company by ticker")
	searchCmd.Flags().StringSliceVar(&searchTypes, "type", nil, "restrict to filing types (e.g. 10-K,10-Q)")
	searchCmd.Flags().StringVar(&searchAfter, "after", "", "only filings on or after this date (YYYY-MM-DD)")
	searchCmd.Flags().IntVarP(&searchK, "limit", "n", 0, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchRerank, "rerank", true, "rerank results with lexical signals")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().IntVar(&searchContext, "context", 0, "expand each result by N characters of context")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := requireEngine(); err != nil {
		return err
	}
	query := args[0]

	opts := domain.SearchOptions{
		FilingTypes: searchTypes,
		K:           searchK,
		Rerank:      searchRerank,
	}
	if opts.K <= 0 {
		opts.K = cfg.Search.DefaultK
	}
	if !cmd.Flags().Changed("rerank") {
		opts.Rerank = cfg.Search.Rerank
	}
	if searchAfter != "" {
		after, err := time.Parse("2006-01-02", searchAfter)
		if err != nil {
			return fmt.Errorf("invalid --after date %q: %w", searchAfter, err)
		}
		opts.DateAfter = after
	}

	ctx := cmd.Context()
	var results []domain.SearchResult
	var err error
	if searchTicker != "" {
		results, err = searchService.SearchByTicker(ctx, query, searchTicker, opts)
	} else {
		results, err = searchService.Search(ctx, query, opts)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchContext > 0 {
		for i := range results {
			results[i].Text = searchService.ContextWindow(&results[i], searchContext)
		}
	}

	if searchJSON {
		return outputResultsJSON(cmd, results)
	}
	return outputResultsTable(cmd, results, strings.Fields(query))
}

func outputResultsJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputResultsTable(cmd *cobra.Command, results []domain.SearchResult, queryWords []string) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, r := range results {
		header := r.Meta.FilingType
		if r.CompanyTicker != "" {
			header = r.CompanyTicker + " " + header
		}
		if !r.Meta.FilingDate.IsZero() {
			header += " " + r.Meta.FilingDate.Format("2006-01-02")
		}

		cmd.Printf("  [%d] %s (distance %.4f)\n", i+1, header, r.Distance)
		if r.Meta.Section != domain.SectionFullDocument && r.Meta.Section != "" {
			cmd.Printf("      Section: %s\n", r.Meta.Section)
		}
		if r.RerankScore > 0 {
			cmd.Printf("      Rerank score: %.3f\n", r.RerankScore)
		}
		// Prefer a sentence containing a query term as the snippet.
		display := r.Text
		if hits := processor.ExtractKeySentences(r.Text, queryWords); len(hits) > 0 {
			display = hits[0]
		}
		cmd.Printf("      %s\n", snippet(display, 300))
		if r.FilingURL != "" {
			cmd.Printf("      %s\n", r.FilingURL)
		}
		cmd.Println()
	}
	return nil
}

// snippet truncates text for table display on a rune boundary.
func snippet(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
