// Package matcher decides whether a bank statement line reconciles against a
// financial record. Matching is deterministic and conservative: exactly one
// candidate with the same amount inside the date window reconciles, anything
// else leaves the line unmatched for a human to resolve.
package matcher

import (
	"context"
	"time"

	"church-finance-service/internal/finrecords"
	"church-finance-service/internal/models"
	"church-finance-service/pkg/logger"
)

// Verdict is the outcome of matching one statement line.
type Verdict struct {
	// Matched is true when exactly one candidate was found.
	Matched bool

	// FinancialRecordID is the matched record when Matched is true.
	FinancialRecordID string

	// Ambiguous is true when more than one candidate was found. Matched and
	// Ambiguous are never both true.
	Ambiguous bool

	// Candidates holds every record considered, for reporting.
	Candidates []*models.FinancialRecord
}

// Matcher matches statement lines against financial record candidates.
type Matcher struct {
	records finrecords.Repository
	config  *MatchingConfig
	logger  logger.Logger
}

// NewMatcher creates a matcher over the given record repository.
func NewMatcher(records finrecords.Repository, config *MatchingConfig) (*Matcher, error) {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Matcher{
		records: records,
		config:  config,
		logger:  logger.GetGlobalLogger().WithComponent("matcher"),
	}, nil
}

// Match evaluates one statement line. It never picks between multiple
// candidates; a wrong automatic link is worse than no link.
func (m *Matcher) Match(ctx context.Context, line *models.BankStatementLine) (*Verdict, error) {
	start, end := m.dateWindow(line.PostedAt)

	candidates, err := m.records.FindCandidates(ctx, finrecords.CandidateFilter{
		ChurchID:  line.ChurchID,
		Amount:    line.Amount,
		DateStart: start,
		DateEnd:   end,
	})
	if err != nil {
		return nil, err
	}

	verdict := &Verdict{Candidates: candidates}

	switch len(candidates) {
	case 0:
		m.logger.WithFields(logger.Fields{
			"church_id":    line.ChurchID,
			"statement_id": line.StatementID,
			"amount":       line.Amount.String(),
		}).Debug("No match candidate found")
	case 1:
		verdict.Matched = true
		verdict.FinancialRecordID = candidates[0].RecordID
	default:
		verdict.Ambiguous = true
		m.logger.WithFields(logger.Fields{
			"church_id":    line.ChurchID,
			"statement_id": line.StatementID,
			"candidates":   len(candidates),
		}).Info("Ambiguous match left for manual resolution")
	}

	return verdict, nil
}

// dateWindow returns the inclusive candidate date range for a posting date.
// The window spans whole calendar days in UTC.
func (m *Matcher) dateWindow(postedAt time.Time) (time.Time, time.Time) {
	day := postedAt.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	start = start.AddDate(0, 0, -m.config.DateWindowDays)

	end := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 999999999, time.UTC)
	end = end.AddDate(0, 0, m.config.DateWindowDays)

	return start, end
}
