// Package events carries domain notifications out of the reconciliation
// core. Dispatch is fire and forget: a reconciliation that already committed
// is never rolled back because a consumer failed.
package events

import (
	"time"

	"church-finance-service/internal/models"

	"github.com/google/uuid"
)

// EventTypeRecordStatusChanged is emitted when reconciliation flips a
// financial record's status.
const EventTypeRecordStatusChanged = "financial_record.status_changed"

// FinancialRecordStatusChanged notifies downstream contexts that a record's
// status changed as a side effect of reconciliation.
type FinancialRecordStatusChanged struct {
	EventID     string                       `json:"eventId"`
	Type        string                       `json:"type"`
	OccurredAt  time.Time                    `json:"occurredAt"`
	ChurchID    string                       `json:"churchId"`
	RecordID    string                       `json:"recordId"`
	StatementID string                       `json:"statementId"`
	NewStatus   models.FinancialRecordStatus `json:"newStatus"`
}

// NewFinancialRecordStatusChanged builds an event with a fresh id.
func NewFinancialRecordStatusChanged(churchID, recordID, statementID string, status models.FinancialRecordStatus) *FinancialRecordStatusChanged {
	return &FinancialRecordStatusChanged{
		EventID:     uuid.New().String(),
		Type:        EventTypeRecordStatusChanged,
		OccurredAt:  time.Now().UTC(),
		ChurchID:    churchID,
		RecordID:    recordID,
		StatementID: statementID,
		NewStatus:   status,
	}
}

// Handler consumes dispatched events.
type Handler func(event *FinancialRecordStatusChanged)

// Dispatcher delivers events to registered handlers.
type Dispatcher interface {
	// Dispatch hands an event off for delivery. It never blocks the caller
	// on consumer work and never returns a consumer's error.
	Dispatch(event *FinancialRecordStatusChanged) error

	// Close stops delivery after draining queued events.
	Close()
}
