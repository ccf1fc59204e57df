package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if err := requireEngine(); err != nil {
		return err
	}
	stats := searchService.Stats()

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Index:            %s (dim %d)\n", stats.IndexKind, stats.Dimension)
	cmd.Printf("Trained:          %t\n", stats.Trained)
	cmd.Printf("Vectors:          %d\n", stats.TotalVectors)
	cmd.Printf("Chunks:           %d\n", stats.TotalChunks)
	if stats.PendingVectors > 0 {
		cmd.Printf("Pending vectors:  %d\n", stats.PendingVectors)
	}
	cmd.Printf("Companies:        %d\n", stats.CompaniesIndexed)
	cmd.Printf("Embedding model:  %s\n", stats.EmbeddingModel)

	if len(stats.FilingTypes) > 0 {
		cmd.Println("Filing types:")
		types := make([]string, 0, len(stats.FilingTypes))
		for t := range stats.FilingTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			cmd.Printf("  %-8s %d\n", t, stats.FilingTypes[t])
		}
	}
	return nil
}
