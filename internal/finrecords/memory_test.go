package finrecords

import (
	"context"
	"testing"
	"time"

	"church-finance-service/internal/models"

	"github.com/shopspring/decimal"
)

func testRecord(churchID, recordID string, amount float64, date time.Time, status models.FinancialRecordStatus) *models.FinancialRecord {
	return &models.FinancialRecord{
		RecordID: recordID,
		ChurchID: churchID,
		Amount:   decimal.NewFromFloat(amount),
		Date:     date,
		Status:   status,
	}
}

func TestFindCandidatesExactAmountAndDate(t *testing.T) {
	repo := NewMemoryRepository()
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	err := repo.Seed(
		testRecord("c1", "fr-1", 100, day, models.RecordStatusOpen),
		testRecord("c1", "fr-2", 100, day.AddDate(0, 0, 3), models.RecordStatusOpen),
		testRecord("c1", "fr-3", 99.99, day, models.RecordStatusOpen),
		testRecord("c2", "fr-4", 100, day, models.RecordStatusOpen),
	)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	candidates, err := repo.FindCandidates(context.Background(), CandidateFilter{
		ChurchID:  "c1",
		Amount:    decimal.NewFromFloat(100),
		DateStart: day,
		DateEnd:   day.Add(23*time.Hour + 59*time.Minute),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(candidates) != 1 || candidates[0].RecordID != "fr-1" {
		t.Errorf("Expected exactly fr-1, got %+v", candidates)
	}
}

func TestFindCandidatesSkipsReconciledRecords(t *testing.T) {
	repo := NewMemoryRepository()
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	err := repo.Seed(
		testRecord("c1", "fr-1", 100, day, models.RecordStatusReconciled),
		testRecord("c1", "fr-2", 100, day, models.RecordStatusCleared),
	)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	candidates, err := repo.FindCandidates(context.Background(), CandidateFilter{
		ChurchID:  "c1",
		Amount:    decimal.NewFromFloat(100),
		DateStart: day,
		DateEnd:   day,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(candidates) != 1 || candidates[0].RecordID != "fr-2" {
		t.Errorf("Expected only the non-reconciled record, got %+v", candidates)
	}
}

func TestFindCandidatesDateWindow(t *testing.T) {
	repo := NewMemoryRepository()
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	err := repo.Seed(
		testRecord("c1", "fr-before", 100, day.AddDate(0, 0, -2), models.RecordStatusOpen),
		testRecord("c1", "fr-inside", 100, day.AddDate(0, 0, -1), models.RecordStatusOpen),
		testRecord("c1", "fr-after", 100, day.AddDate(0, 0, 2), models.RecordStatusOpen),
	)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	candidates, err := repo.FindCandidates(context.Background(), CandidateFilter{
		ChurchID:  "c1",
		Amount:    decimal.NewFromFloat(100),
		DateStart: day.AddDate(0, 0, -1),
		DateEnd:   day.AddDate(0, 0, 1),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(candidates) != 1 || candidates[0].RecordID != "fr-inside" {
		t.Errorf("Expected only the in-window record, got %+v", candidates)
	}
}

func TestFindCandidatesValidation(t *testing.T) {
	repo := NewMemoryRepository()
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter CandidateFilter
	}{
		{"missing church", CandidateFilter{Amount: decimal.NewFromInt(1), DateStart: day, DateEnd: day}},
		{"zero amount", CandidateFilter{ChurchID: "c1", DateStart: day, DateEnd: day}},
		{"zero dates", CandidateFilter{ChurchID: "c1", Amount: decimal.NewFromInt(1)}},
		{"inverted range", CandidateFilter{ChurchID: "c1", Amount: decimal.NewFromInt(1), DateStart: day, DateEnd: day.AddDate(0, 0, -1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.FindCandidates(context.Background(), tt.filter); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestUpdateStatusIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	if err := repo.Seed(testRecord("c1", "fr-1", 100, day, models.RecordStatusOpen)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ctx := context.Background()
	if err := repo.UpdateStatus(ctx, "c1", "fr-1", models.RecordStatusReconciled); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Applying the same status again succeeds without changing anything.
	if err := repo.UpdateStatus(ctx, "c1", "fr-1", models.RecordStatusReconciled); err != nil {
		t.Errorf("Expected idempotent update, got %v", err)
	}

	record, ok := repo.One("c1", "fr-1")
	if !ok || record.Status != models.RecordStatusReconciled {
		t.Errorf("Expected RECONCILED record, got %+v", record)
	}
}

func TestUpdateStatusUnknownRecord(t *testing.T) {
	repo := NewMemoryRepository()

	if err := repo.UpdateStatus(context.Background(), "c1", "missing", models.RecordStatusReconciled); err == nil {
		t.Error("Expected error for unknown record")
	}
}
