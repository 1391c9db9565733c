// Package jobs runs statement imports as background work. Imports arrive
// over HTTP as file uploads, get queued, and are processed by a worker pool
// with bounded retries; the job record tracks progress for polling clients.
package jobs

import (
	"strings"
	"time"

	"church-finance-service/pkg/errors"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// ImportOutcome summarizes a finished import for the job record.
type ImportOutcome struct {
	TotalRows  int `json:"totalRows"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Reconciled int `json:"reconciled"`
	Unmatched  int `json:"unmatched"`
}

// ImportJob is one queued statement import. Payload holds the uploaded file
// bytes; statement exports are small enough to carry inline.
type ImportJob struct {
	ID                    string         `json:"id"`
	ChurchID              string         `json:"churchId"`
	Bank                  string         `json:"bank"`
	AccountName           string         `json:"accountName"`
	AvailabilityAccountID string         `json:"availabilityAccountId"`
	Month                 int            `json:"month"`
	Year                  int            `json:"year"`
	Filename              string         `json:"filename"`
	Payload               []byte         `json:"-"`
	Status                Status         `json:"status"`
	Attempts              int            `json:"attempts"`
	Error                 string         `json:"error,omitempty"`
	Outcome               *ImportOutcome `json:"outcome,omitempty"`
	EnqueuedAt            time.Time      `json:"enqueuedAt"`
	FinishedAt            *time.Time     `json:"finishedAt,omitempty"`
}

// NewImportJob builds a queued job with a fresh id.
func NewImportJob(churchID, bank, accountName, availabilityAccountID string, month, year int, filename string, payload []byte) *ImportJob {
	return &ImportJob{
		ID:                    uuid.New().String(),
		ChurchID:              churchID,
		Bank:                  bank,
		AccountName:           accountName,
		AvailabilityAccountID: availabilityAccountID,
		Month:                 month,
		Year:                  year,
		Filename:              filename,
		Payload:               payload,
		Status:                StatusQueued,
		EnqueuedAt:            time.Now().UTC(),
	}
}

// Validate checks the job can be processed.
func (j *ImportJob) Validate() error {
	if strings.TrimSpace(j.ChurchID) == "" {
		return errors.ValidationError(errors.CodeMissingField, "church_id", j.ChurchID, nil)
	}
	if strings.TrimSpace(j.Bank) == "" {
		return errors.ValidationError(errors.CodeMissingField, "bank", j.Bank, nil)
	}
	if j.Month < 1 || j.Month > 12 {
		return errors.ValidationError(errors.CodeInvalidDate, "month", j.Month, nil)
	}
	if j.Year < 2000 || j.Year > 2100 {
		return errors.ValidationError(errors.CodeInvalidDate, "year", j.Year, nil)
	}
	if len(j.Payload) == 0 {
		return errors.ValidationError(errors.CodeMissingField, "file", j.Filename, nil)
	}
	return nil
}
