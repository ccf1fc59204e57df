package cli

import (
	"github.com/spf13/cobra"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List companies in the filing store",
	RunE:  runCompanies,
}

func init() {
	rootCmd.AddCommand(companiesCmd)
}

func runCompanies(cmd *cobra.Command, _ []string) error {
	if err := requireEngine(); err != nil {
		return err
	}

	companies, err := filingStore.Companies(cmd.Context())
	if err != nil {
		return err
	}
	if len(companies) == 0 {
		cmd.Println("No companies in the filing store.")
		return nil
	}

	for _, c := range companies {
		cmd.Printf("  %-8s %s\n", c.Ticker, c.Name)
	}
	return nil
}
