// Package reporter renders import results for the CLI. The console format is
// for humans running one-off imports; JSON is for scripts wrapping the
// binary.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"church-finance-service/internal/models"
	"church-finance-service/internal/reconciler"
	"church-finance-service/pkg/errors"
)

// OutputFormat selects how an import result is rendered.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON:
		return true
	default:
		return false
	}
}

// Reporter writes import results to an output stream.
type Reporter struct {
	writer io.Writer
	format OutputFormat
}

// NewReporter creates a reporter for the given format.
func NewReporter(writer io.Writer, format OutputFormat) (*Reporter, error) {
	if !format.IsValid() {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "output_format", format, nil)
	}

	return &Reporter{
		writer: writer,
		format: format,
	}, nil
}

// jsonReport is the JSON envelope for an import result.
type jsonReport struct {
	GeneratedAt time.Time                `json:"generatedAt"`
	File        string                   `json:"file"`
	Bank        string                   `json:"bank"`
	Result      *reconciler.ImportResult `json:"result"`
	Unmatched   []unmatchedLine          `json:"unmatched,omitempty"`
}

type unmatchedLine struct {
	StatementID string `json:"statementId"`
	PostedAt    string `json:"postedAt"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// Render writes the import result. Unmatched lines are listed so the
// bookkeeper knows what needs manual attention.
func (r *Reporter) Render(file, bank string, result *reconciler.ImportResult, unmatched []*models.BankStatementLine) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(file, bank, result, unmatched)
	default:
		return r.renderConsole(file, bank, result, unmatched)
	}
}

func (r *Reporter) renderJSON(file, bank string, result *reconciler.ImportResult, unmatched []*models.BankStatementLine) error {
	report := jsonReport{
		GeneratedAt: time.Now().UTC(),
		File:        file,
		Bank:        bank,
		Result:      result,
	}

	for _, line := range unmatched {
		report.Unmatched = append(report.Unmatched, unmatchedLine{
			StatementID: line.StatementID,
			PostedAt:    line.PostedAt.Format("2006-01-02"),
			Amount:      line.Amount.String(),
			Description: line.Description,
		})
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return errors.InternalError("encode import report", err)
	}
	return nil
}

func (r *Reporter) renderConsole(file, bank string, result *reconciler.ImportResult, unmatched []*models.BankStatementLine) error {
	w := r.writer

	fmt.Fprintf(w, "Import of %s (%s)\n", file, bank)
	fmt.Fprintf(w, "%s\n", separator(60))
	fmt.Fprintf(w, "  Rows parsed:      %d\n", result.TotalRows)
	fmt.Fprintf(w, "  Lines inserted:   %d\n", result.Inserted)
	fmt.Fprintf(w, "  Duplicates:       %d\n", result.Duplicates)
	fmt.Fprintf(w, "  Reconciled:       %d\n", result.Reconciled)
	fmt.Fprintf(w, "  Unmatched:        %d\n", result.Unmatched)
	fmt.Fprintf(w, "  Duration:         %s\n", result.Duration.Round(time.Millisecond))

	if len(unmatched) > 0 {
		fmt.Fprintf(w, "\nUnmatched lines needing attention:\n")
		for _, line := range unmatched {
			fmt.Fprintf(w, "  %s  %10s  %s\n",
				line.PostedAt.Format("2006-01-02"), line.Amount.String(), line.Description)
		}
	}

	return nil
}

func separator(width int) string {
	s := make([]byte, width)
	for i := range s {
		s[i] = '-'
	}
	return string(s)
}
