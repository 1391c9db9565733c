package finrecords

import (
	"context"
	"sort"
	"sync"

	"church-finance-service/internal/models"
	"church-finance-service/pkg/errors"
)

// MemoryRepository is an in-memory Repository mirroring the Mongo semantics.
// Used in tests and local runs.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*models.FinancialRecord
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[string]*models.FinancialRecord),
	}
}

func recordKey(churchID, recordID string) string {
	return churchID + "|" + recordID
}

// Seed adds records directly, bypassing ownership rules. Test helper.
func (r *MemoryRepository) Seed(records ...*models.FinancialRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
		clone := *record
		r.records[recordKey(record.ChurchID, record.RecordID)] = &clone
	}

	return nil
}

// FindCandidates returns non-reconciled records with the exact amount inside
// the date window, ordered by record id for determinism.
func (r *MemoryRepository) FindCandidates(ctx context.Context, filter CandidateFilter) ([]*models.FinancialRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.FinancialRecord
	for _, record := range r.records {
		if record.ChurchID != filter.ChurchID {
			continue
		}
		if record.Status == models.RecordStatusReconciled {
			continue
		}
		if !record.Amount.Equal(filter.Amount) {
			continue
		}
		date := record.Date.UTC()
		if date.Before(filter.DateStart.UTC()) || date.After(filter.DateEnd.UTC()) {
			continue
		}
		clone := *record
		matched = append(matched, &clone)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].RecordID < matched[j].RecordID
	})

	return matched, nil
}

// UpdateStatus sets a record's status. Writing the status the record already
// has is a no-op.
func (r *MemoryRepository) UpdateStatus(ctx context.Context, churchID, recordID string, status models.FinancialRecordStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.records[recordKey(churchID, recordID)]
	if !exists {
		return errors.RepositoryError(errors.CodeQueryFailed, "update financial record status", nil).
			WithContext("church_id", churchID).
			WithContext("record_id", recordID)
	}

	record.Status = status
	return nil
}

// One fetches a record by id. Test helper.
func (r *MemoryRepository) One(churchID, recordID string) (*models.FinancialRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[recordKey(churchID, recordID)]
	if !exists {
		return nil, false
	}
	clone := *record
	return &clone, true
}
