// Package finrecords reads and updates the financial records owned by the
// accounts payable and receivable contexts. The reconciliation core only ever
// queries match candidates and flips record statuses; it never creates or
// deletes records.
package finrecords

import (
	"context"
	"time"

	"church-finance-service/internal/models"
	"church-finance-service/pkg/errors"

	"github.com/shopspring/decimal"
)

// CandidateFilter selects financial records that could match a statement
// line: same tenant, exact amount, date inside the window. A zero window
// means same calendar date only.
type CandidateFilter struct {
	ChurchID  string
	Amount    decimal.Decimal
	DateStart time.Time
	DateEnd   time.Time
}

// Validate checks that the filter can be executed.
func (f CandidateFilter) Validate() error {
	if f.ChurchID == "" {
		return errors.ValidationError(errors.CodeMissingField, "church_id", f.ChurchID, nil)
	}
	if f.Amount.IsZero() {
		return errors.ValidationError(errors.CodeInvalidAmount, "amount", f.Amount.String(), nil)
	}
	if f.DateStart.IsZero() || f.DateEnd.IsZero() {
		return errors.ValidationError(errors.CodeInvalidDate, "date_range", "", nil)
	}
	if f.DateEnd.Before(f.DateStart) {
		return errors.ValidationError(errors.CodeInvalidDate, "date_range", f.DateEnd, nil)
	}
	return nil
}

// Repository is the read/update contract over financial records.
type Repository interface {
	// FindCandidates returns every record matching the filter that is not
	// already reconciled.
	FindCandidates(ctx context.Context, filter CandidateFilter) ([]*models.FinancialRecord, error)

	// UpdateStatus sets a record's status. Setting a status the record
	// already has is a no-op, not an error.
	UpdateStatus(ctx context.Context, churchID, recordID string, status models.FinancialRecordStatus) error
}
