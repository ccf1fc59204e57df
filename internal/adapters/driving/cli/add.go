package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/catalyst-labs/filingrag/internal/core/domain"
)

var (
	addFilingType string
	addFilingDate string
	addAccession  string
	addFilePath   string
	addFilingURL  string
	addName       string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Register companies and filings in the filing store",
}

var addCompanyCmd = &cobra.Command{
	Use:   "company [ticker]",
	Short: "Register a company",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddCompany,
}

var addFilingCmd = &cobra.Command{
	Use:   "filing [ticker]",
	Short: "Register a downloaded filing for a company",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddFiling,
}

func init() {
	addCompanyCmd.Flags().StringVar(&addName, "name", "", "company name")

	addFilingCmd.Flags().StringVar(&addFilingType, "type", "", "SEC form type (e.g. 10-K)")
	addFilingCmd.Flags().StringVar(&addFilingDate, "date", "", "filing date (YYYY-MM-DD)")
	addFilingCmd.Flags().StringVar(&addAccession, "accession", "", "SEC accession number")
	addFilingCmd.Flags().StringVar(&addFilePath, "path", "", "path to the downloaded filing text")
	addFilingCmd.Flags().StringVar(&addFilingURL, "url", "", "EDGAR URL of the filing")
	addFilingCmd.MarkFlagRequired("type")
	addFilingCmd.MarkFlagRequired("date")
	addFilingCmd.MarkFlagRequired("accession")
	addFilingCmd.MarkFlagRequired("path")

	addCmd.AddCommand(addCompanyCmd)
	addCmd.AddCommand(addFilingCmd)
	rootCmd.AddCommand(addCmd)
}

func runAddCompany(cmd *cobra.Command, args []string) error {
	if err := requireEngine(); err != nil {
		return err
	}

	company := domain.Company{Ticker: args[0], Name: addName}
	if err := filingStore.SaveCompany(cmd.Context(), &company); err != nil {
		return err
	}
	cmd.Printf("Registered %s (id %d)\n", company.Ticker, company.ID)
	return nil
}

func runAddFiling(cmd *cobra.Command, args []string) error {
	if err := requireEngine(); err != nil {
		return err
	}
	ctx := cmd.Context()

	date, err := time.Parse("2006-01-02", addFilingDate)
	if err != nil {
		return fmt.Errorf("invalid --date %q: %w", addFilingDate, err)
	}

	// Create the company on first sight of its ticker.
	company := domain.Company{Ticker: args[0]}
	if err := filingStore.SaveCompany(ctx, &company); err != nil {
		return err
	}

	filing := domain.Filing{
		CompanyID:       company.ID,
		FilingType:      addFilingType,
		FilingDate:      date,
		AccessionNumber: addAccession,
		FilePath:        addFilePath,
		FilingURL:       addFilingURL,
	}
	if err := filingStore.SaveFiling(ctx, &filing); err != nil {
		return err
	}
	cmd.Printf("Registered %s %s for %s (filing id %d)\n",
		filing.FilingType, addFilingDate, company.Ticker, filing.ID)
	return nil
}
