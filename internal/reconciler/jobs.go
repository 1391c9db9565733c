package reconciler

import (
	"bytes"
	"context"

	"church-finance-service/internal/jobs"
)

// ImportJobHandler adapts the service's Import operation to the job queue.
func ImportJobHandler(s *Service) jobs.Handler {
	return func(ctx context.Context, job *jobs.ImportJob) (*jobs.ImportOutcome, error) {
		result, err := s.Import(ctx, ImportRequest{
			ChurchID:              job.ChurchID,
			Bank:                  job.Bank,
			AccountName:           job.AccountName,
			AvailabilityAccountID: job.AvailabilityAccountID,
			Month:                 job.Month,
			Year:                  job.Year,
			Filename:              job.Filename,
			Reader:                bytes.NewReader(job.Payload),
		})
		if err != nil {
			return nil, err
		}

		return &jobs.ImportOutcome{
			TotalRows:  result.TotalRows,
			Inserted:   result.Inserted,
			Duplicates: result.Duplicates,
			Reconciled: result.Reconciled,
			Unmatched:  result.Unmatched,
		}, nil
	}
}
