// Package reconciler orchestrates the statement lifecycle: parse an import,
// persist its lines idempotently, run the matcher over pending lines, and
// expose retry for lines left unmatched.
package reconciler

import (
	"context"
	"io"
	"time"

	"church-finance-service/internal/events"
	"church-finance-service/internal/matcher"
	"church-finance-service/internal/models"
	"church-finance-service/internal/parsers"
	"church-finance-service/internal/store"
	"church-finance-service/pkg/logger"
)

// ImportRequest carries one statement file plus its import attribution.
type ImportRequest struct {
	ChurchID              string
	Bank                  string
	AccountName           string
	AvailabilityAccountID string
	Month                 int
	Year                  int
	Filename              string
	Reader                io.Reader
}

// ImportResult summarizes one import run. Reconciled and Unmatched count
// only the lines matched during this run, not lines that were already
// terminal from an earlier import of the same file.
type ImportResult struct {
	TotalRows  int           `json:"totalRows"`
	Inserted   int           `json:"inserted"`
	Duplicates int           `json:"duplicates"`
	Reconciled int           `json:"reconciled"`
	Unmatched  int           `json:"unmatched"`
	Duration   time.Duration `json:"duration"`
}

// Service wires the parser registry, statement store, matcher and event
// dispatcher into the two reconciliation operations. Financial records are
// only read here, through the matcher; writes to them travel as status
// events.
type Service struct {
	registry   *parsers.Registry
	store      store.Store
	matcher    *matcher.Matcher
	dispatcher events.Dispatcher
	logger     logger.Logger
}

// NewService creates the reconciliation service. The dispatcher may be nil
// when no consumer is interested in status events.
func NewService(registry *parsers.Registry, st store.Store, m *matcher.Matcher, dispatcher events.Dispatcher) *Service {
	return &Service{
		registry:   registry,
		store:      st,
		matcher:    m,
		dispatcher: dispatcher,
		logger:     logger.GetGlobalLogger().WithComponent("reconciler"),
	}
}

// Import runs one statement import end to end. Parsing is all or nothing;
// once parsed, lines are inserted idempotently and every line still pending
// is matched in file order.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	start := time.Now()
	log := s.logger.WithFields(logger.Fields{
		"church_id": req.ChurchID,
		"bank":      req.Bank,
		"file":      req.Filename,
	})

	parser, err := s.registry.Resolve(req.Bank)
	if err != nil {
		return nil, err
	}

	rows, err := parser.Parse(ctx, parsers.ParseRequest{Reader: req.Reader, Filename: req.Filename})
	if err != nil {
		log.WithError(err).Warn("Statement parse failed, nothing imported")
		return nil, err
	}

	lines := make([]*models.BankStatementLine, len(rows))
	for i, row := range rows {
		lines[i] = models.NewBankStatementLine(req.ChurchID, req.Bank, req.AccountName,
			req.AvailabilityAccountID, req.Month, req.Year, row)
	}

	inserted, err := s.store.BulkInsert(ctx, lines)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{
		TotalRows:  len(lines),
		Inserted:   inserted,
		Duplicates: len(lines) - inserted,
	}

	progress := logger.NewProgressTracker(s.logger, "statement_matching", int64(len(lines)))
	seen := make(map[string]bool, len(lines))

	for _, line := range lines {
		progress.Increment()

		// A file can repeat its own natural key; the store kept one copy.
		if seen[line.StatementID] {
			continue
		}
		seen[line.StatementID] = true

		stored, err := s.store.One(ctx, req.ChurchID, line.StatementID)
		if err != nil {
			return nil, err
		}

		// Lines already resolved by an earlier import stay untouched.
		if stored.ReconciliationStatus != models.StatusPending {
			continue
		}

		status, err := s.reconcileLine(ctx, stored)
		if err != nil {
			return nil, err
		}

		switch status {
		case models.StatusReconciled:
			result.Reconciled++
		case models.StatusUnmatched:
			result.Unmatched++
		}
	}

	progress.Done()
	result.Duration = time.Since(start)

	log.WithFields(logger.Fields{
		"total_rows": result.TotalRows,
		"inserted":   result.Inserted,
		"duplicates": result.Duplicates,
		"reconciled": result.Reconciled,
		"unmatched":  result.Unmatched,
		"duration":   result.Duration.Round(time.Millisecond),
	}).Info("Statement import finished")

	return result, nil
}

// Retry re-runs matching for one statement line. Already reconciled lines
// return unchanged; their status event is re-emitted so a record update lost
// in delivery can be recovered. Retry is safe to call any number of times.
func (s *Service) Retry(ctx context.Context, churchID, statementID string) (*models.BankStatementLine, error) {
	line, err := s.store.One(ctx, churchID, statementID)
	if err != nil {
		return nil, err
	}

	if line.ReconciliationStatus == models.StatusReconciled {
		s.logger.WithFields(logger.Fields{
			"church_id":    churchID,
			"statement_id": statementID,
		}).Debug("Retry on reconciled line re-emits the status event")
		s.dispatch(line, line.FinancialRecordID)
		return line, nil
	}

	if _, err := s.reconcileLine(ctx, line); err != nil {
		return nil, err
	}

	return s.store.One(ctx, churchID, statementID)
}

// reconcileLine matches one line and persists the verdict. A single
// candidate reconciles line and record together; zero or many candidates
// leave the line unmatched.
func (s *Service) reconcileLine(ctx context.Context, line *models.BankStatementLine) (models.ReconciliationStatus, error) {
	verdict, err := s.matcher.Match(ctx, line)
	if err != nil {
		return "", err
	}

	if !verdict.Matched {
		if err := s.store.UpdateStatus(ctx, line.ChurchID, line.StatementID, models.StatusUnmatched, "", nil); err != nil {
			return "", err
		}
		return models.StatusUnmatched, nil
	}

	now := time.Now().UTC()
	if err := s.store.UpdateStatus(ctx, line.ChurchID, line.StatementID, models.StatusReconciled, verdict.FinancialRecordID, &now); err != nil {
		return "", err
	}

	// The record side is applied by the status-event consumer. The line
	// transition is committed, so nothing past this point may fail the run.
	s.dispatch(line, verdict.FinancialRecordID)

	return models.StatusReconciled, nil
}

// dispatch emits the status-changed event. Failures are logged and dropped;
// the reconciliation already committed.
func (s *Service) dispatch(line *models.BankStatementLine, recordID string) {
	if s.dispatcher == nil {
		return
	}

	event := events.NewFinancialRecordStatusChanged(line.ChurchID, recordID, line.StatementID, models.RecordStatusReconciled)
	if err := s.dispatcher.Dispatch(event); err != nil {
		s.logger.WithError(err).WithFields(logger.Fields{
			"church_id": line.ChurchID,
			"record_id": recordID,
		}).Warn("Failed to dispatch status event")
	}
}

// Summary returns per-status line counts for a tenant's period.
func (s *Service) Summary(ctx context.Context, churchID string, month, year int) (map[models.ReconciliationStatus]int64, error) {
	return s.store.CountByStatus(ctx, churchID, month, year)
}

// List returns statement lines for a tenant, filtered by the criteria.
func (s *Service) List(ctx context.Context, criteria store.ListCriteria) ([]*models.BankStatementLine, error) {
	return s.store.List(ctx, criteria)
}
