package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"church-finance-service/internal/models"
	"church-finance-service/pkg/errors"
)

// MemoryStore is an in-memory Store with the same idempotency and invariant
// semantics as the Mongo implementation. Used in tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	lines map[string]*models.BankStatementLine
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lines: make(map[string]*models.BankStatementLine),
	}
}

func lineKey(churchID, statementID string) string {
	return churchID + "|" + statementID
}

func copyLine(line *models.BankStatementLine) *models.BankStatementLine {
	clone := *line
	if line.ReconciledAt != nil {
		at := *line.ReconciledAt
		clone.ReconciledAt = &at
	}
	return &clone
}

// BulkInsert writes the lines, dropping duplicates of already stored ids.
func (s *MemoryStore) BulkInsert(ctx context.Context, lines []*models.BankStatementLine) (int, error) {
	for _, line := range lines {
		if err := line.Validate(); err != nil {
			return 0, errors.ValidationError(errors.CodeMissingField, "statement_line", line.StatementID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, line := range lines {
		key := lineKey(line.ChurchID, line.StatementID)
		if _, exists := s.lines[key]; exists {
			continue
		}
		s.lines[key] = copyLine(line)
		inserted++
	}

	return inserted, nil
}

// UpdateStatus transitions one line, enforcing the reconciliation invariant.
func (s *MemoryStore) UpdateStatus(ctx context.Context, churchID, statementID string, status models.ReconciliationStatus, financialRecordID string, reconciledAt *time.Time) error {
	if !status.IsValid() {
		return errors.ValidationError(errors.CodeInvalidStatus, "status", status, nil)
	}
	if status == models.StatusReconciled && (financialRecordID == "" || reconciledAt == nil) {
		return errors.ValidationError(errors.CodeMissingField, "financial_record_id", financialRecordID, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line, exists := s.lines[lineKey(churchID, statementID)]
	if !exists {
		return errors.StatementNotFoundError(churchID, statementID)
	}

	line.ReconciliationStatus = status
	if status == models.StatusReconciled {
		line.FinancialRecordID = financialRecordID
		at := *reconciledAt
		line.ReconciledAt = &at
	} else {
		line.FinancialRecordID = ""
		line.ReconciledAt = nil
	}

	return nil
}

// One fetches a single line scoped to the tenant.
func (s *MemoryStore) One(ctx context.Context, churchID, statementID string) (*models.BankStatementLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	line, exists := s.lines[lineKey(churchID, statementID)]
	if !exists {
		return nil, errors.StatementNotFoundError(churchID, statementID)
	}

	return copyLine(line), nil
}

// List returns the lines matching the criteria, newest posting date first.
func (s *MemoryStore) List(ctx context.Context, criteria ListCriteria) ([]*models.BankStatementLine, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.BankStatementLine
	for _, line := range s.lines {
		if line.ChurchID != criteria.ChurchID {
			continue
		}
		if criteria.AvailabilityAccountID != "" && line.AvailabilityAccountID != criteria.AvailabilityAccountID {
			continue
		}
		if criteria.Month != 0 && line.Month != criteria.Month {
			continue
		}
		if criteria.Year != 0 && line.Year != criteria.Year {
			continue
		}
		if criteria.Status != "" && line.ReconciliationStatus != criteria.Status {
			continue
		}
		matched = append(matched, copyLine(line))
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].PostedAt.Equal(matched[j].PostedAt) {
			return matched[i].PostedAt.After(matched[j].PostedAt)
		}
		return matched[i].StatementID < matched[j].StatementID
	})

	if criteria.Offset > 0 {
		if criteria.Offset >= int64(len(matched)) {
			return nil, nil
		}
		matched = matched[criteria.Offset:]
	}
	if criteria.Limit > 0 && criteria.Limit < int64(len(matched)) {
		matched = matched[:criteria.Limit]
	}

	return matched, nil
}

// CountByStatus aggregates per-status line counts for a tenant's period.
func (s *MemoryStore) CountByStatus(ctx context.Context, churchID string, month, year int) (map[models.ReconciliationStatus]int64, error) {
	if churchID == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "church_id", churchID, nil)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.ReconciliationStatus]int64)
	for _, line := range s.lines {
		if line.ChurchID != churchID {
			continue
		}
		if month != 0 && line.Month != month {
			continue
		}
		if year != 0 && line.Year != year {
			continue
		}
		counts[line.ReconciliationStatus]++
	}

	return counts, nil
}
