package cmd

import (
	"context"
	"os"

	"church-finance-service/internal/models"
	"church-finance-service/internal/reconciler"
	"church-finance-service/internal/reporter"
	"church-finance-service/internal/store"
	"church-finance-service/pkg/errors"

	"github.com/spf13/cobra"
)

var (
	importFile         string
	importChurch       string
	importBank         string
	importAccountName  string
	importAvailability string
	importMonth        int
	importYear         int
	importFormat       string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a statement file from the command line",
	Long: `Import runs one statement import synchronously against the configured
database and prints the result. Useful for backfills and operational
one-offs without going through the HTTP API.`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importFile, "file", "", "statement file to import (required)")
	importCmd.Flags().StringVar(&importChurch, "church", "", "church id (required)")
	importCmd.Flags().StringVar(&importBank, "bank", "", "bank tag: BRADESCO, SANTANDER or GENERIC (required)")
	importCmd.Flags().StringVar(&importAccountName, "account-name", "", "bank account display name")
	importCmd.Flags().StringVar(&importAvailability, "availability-account", "", "availability account id")
	importCmd.Flags().IntVar(&importMonth, "month", 0, "statement month 1-12 (required)")
	importCmd.Flags().IntVar(&importYear, "year", 0, "statement year (required)")
	importCmd.Flags().StringVar(&importFormat, "output-format", "console", "output format: console or json")

	importCmd.MarkFlagRequired("file")
	importCmd.MarkFlagRequired("church")
	importCmd.MarkFlagRequired("bank")
	importCmd.MarkFlagRequired("month")
	importCmd.MarkFlagRequired("year")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.close(ctx)

	file, err := os.Open(importFile)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileError(errors.CodeFileNotFound, importFile, err)
		}
		return errors.FileError(errors.CodeFilePermission, importFile, err)
	}
	defer file.Close()

	result, err := app.service.Import(ctx, reconciler.ImportRequest{
		ChurchID:              importChurch,
		Bank:                  importBank,
		AccountName:           importAccountName,
		AvailabilityAccountID: importAvailability,
		Month:                 importMonth,
		Year:                  importYear,
		Filename:              importFile,
		Reader:                file,
	})
	if err != nil {
		return err
	}

	unmatched, err := app.service.List(ctx, store.ListCriteria{
		ChurchID: importChurch,
		Month:    importMonth,
		Year:     importYear,
		Status:   models.StatusUnmatched,
	})
	if err != nil {
		return err
	}

	r, err := reporter.NewReporter(cmd.OutOrStdout(), reporter.OutputFormat(importFormat))
	if err != nil {
		return err
	}

	return r.Render(importFile, importBank, result, unmatched)
}
