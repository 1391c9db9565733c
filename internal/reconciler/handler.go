package reconciler

import (
	"context"

	"church-finance-service/internal/events"
	"church-finance-service/internal/finrecords"
	"church-finance-service/pkg/logger"
)

// RecordStatusHandler returns the event consumer that applies a dispatched
// status change to the financial record. The repository update is idempotent,
// so delivering the same event more than once is safe. A failed update is
// logged and dropped; retrying the statement line re-emits the event.
func RecordStatusHandler(records finrecords.Repository) events.Handler {
	log := logger.GetGlobalLogger().WithComponent("record_status")

	return func(event *events.FinancialRecordStatusChanged) {
		fields := logger.Fields{
			"event_id":     event.EventID,
			"church_id":    event.ChurchID,
			"record_id":    event.RecordID,
			"statement_id": event.StatementID,
			"new_status":   event.NewStatus,
		}

		if err := records.UpdateStatus(context.Background(), event.ChurchID, event.RecordID, event.NewStatus); err != nil {
			log.WithError(err).WithFields(fields).Error("Failed to apply record status change, retry the statement line to re-emit it")
			return
		}

		log.WithFields(fields).Debug("Applied record status change")
	}
}
