package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catalyst-labs/filingrag/internal/index"
)

var removeCmd = &cobra.Command{
	Use:   "remove [ticker]",
	Short: "Remove a company's chunks from the index",
	Long: `Hides all indexed chunks belonging to a company. The underlying
vectors are reclaimed the next time the index is rebuilt from scratch.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	if err := requireEngine(); err != nil {
		return err
	}
	ticker := args[0]

	lock, err := index.AcquireWriterLock(cfg.IndexDir())
	if err != nil {
		return err
	}
	defer lock.Release()

	company, err := filingStore.CompanyByTicker(cmd.Context(), ticker)
	if err != nil {
		return fmt.Errorf("unknown company %q: %w", ticker, err)
	}

	removed := vectorIndex.RemoveCompany(company.ID)
	if removed == 0 {
		cmd.Printf("No indexed chunks for %s\n", company.Ticker)
		return nil
	}

	if err := vectorIndex.Save(); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	cmd.Printf("Removed %d chunks for %s\n", removed, company.Ticker)
	return nil
}
