package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	similarK    int
	similarJSON bool
)

var similarCmd = &cobra.Command{
	Use:   "similar [chunk-id]",
	Short: "Find chunks similar to an indexed chunk",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimilar,
}

func init() {
	similarCmd.Flags().IntVarP(&similarK, "limit", "n", 5, "maximum number of results")
	similarCmd.Flags().BoolVar(&similarJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	if err := requireEngine(); err != nil {
		return err
	}

	chunkID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chunk id %q", args[0])
	}

	results, err := searchService.FindSimilar(cmd.Context(), chunkID, similarK)
	if err != nil {
		return fmt.Errorf("finding similar chunks: %w", err)
	}

	if similarJSON {
		return outputResultsJSON(cmd, results)
	}
	return outputResultsTable(cmd, results, nil)
}
