// Package store persists bank statement lines. The Mongo implementation is
// the production backend; the memory implementation mirrors its semantics for
// tests and local runs without a database.
package store

import (
	"context"
	"time"

	"church-finance-service/internal/models"
	"church-finance-service/pkg/errors"
)

// ListCriteria filters a statement listing. ChurchID is mandatory; every
// query is tenant-scoped.
type ListCriteria struct {
	ChurchID              string
	AvailabilityAccountID string
	Month                 int
	Year                  int
	Status                models.ReconciliationStatus
	Limit                 int64
	Offset                int64
}

// Validate checks that the criteria can be executed.
func (c ListCriteria) Validate() error {
	if c.ChurchID == "" {
		return errors.ValidationError(errors.CodeMissingField, "church_id", c.ChurchID, nil)
	}
	if c.Status != "" && !c.Status.IsValid() {
		return errors.ValidationError(errors.CodeInvalidStatus, "status", c.Status, nil)
	}
	if c.Month < 0 || c.Month > 12 {
		return errors.ValidationError(errors.CodeInvalidDate, "month", c.Month, nil)
	}
	return nil
}

// Store is the persistence contract for bank statement lines.
type Store interface {
	// BulkInsert writes the lines, silently dropping any whose statement id
	// already exists for the tenant. Returns how many were actually inserted.
	BulkInsert(ctx context.Context, lines []*models.BankStatementLine) (int, error)

	// UpdateStatus transitions one line to the given status. A RECONCILED
	// transition requires a financial record id and timestamp; any other
	// status clears both fields.
	UpdateStatus(ctx context.Context, churchID, statementID string, status models.ReconciliationStatus, financialRecordID string, reconciledAt *time.Time) error

	// One fetches a single line by tenant and statement id.
	One(ctx context.Context, churchID, statementID string) (*models.BankStatementLine, error)

	// List returns the lines matching the criteria, newest posting date first.
	List(ctx context.Context, criteria ListCriteria) ([]*models.BankStatementLine, error)

	// CountByStatus returns per-status line counts for a tenant's period.
	CountByStatus(ctx context.Context, churchID string, month, year int) (map[models.ReconciliationStatus]int64, error)
}
