package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"church-finance-service/internal/finrecords"
	"church-finance-service/internal/jobs"
	"church-finance-service/internal/matcher"
	"church-finance-service/internal/models"
	"church-finance-service/internal/parsers"
	"church-finance-service/internal/reconciler"
	"church-finance-service/internal/store"

	"github.com/shopspring/decimal"
)

type testEnv struct {
	server  *Server
	store   *store.MemoryStore
	records *finrecords.MemoryRepository
	queue   *jobs.Queue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := store.NewMemoryStore()
	records := finrecords.NewMemoryRepository()
	m, err := matcher.NewMatcher(records, nil)
	if err != nil {
		t.Fatalf("Failed to build matcher: %v", err)
	}

	service := reconciler.NewService(parsers.NewDefaultRegistry(), st, m, nil)

	queue, err := jobs.NewQueue(
		&jobs.Config{Workers: 1, Capacity: 8, MaxAttempts: 1, RetryBackoff: time.Millisecond},
		reconciler.ImportJobHandler(service),
	)
	if err != nil {
		t.Fatalf("Failed to build queue: %v", err)
	}
	t.Cleanup(queue.Close)

	server, err := NewServer(nil, service, queue)
	if err != nil {
		t.Fatalf("Failed to build server: %v", err)
	}

	return &testEnv{server: server, store: st, records: records, queue: queue}
}

func multipartImport(t *testing.T, csv string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "statement.csv")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(csv)); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("Failed to write form field: %v", err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

func defaultImportFields() map[string]string {
	return map[string]string{
		"bank":                  "GENERIC",
		"accountName":           "Conta Corrente",
		"availabilityAccountId": "acc-1",
		"month":                 "3",
		"year":                  "2024",
	}
}

func decodeBody(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("Invalid JSON %q: %v", data, err)
	}
}

func waitForJob(t *testing.T, env *testEnv, jobID string) *jobs.ImportJob {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		job, ok := env.queue.Get(jobID)
		if !ok {
			t.Fatalf("Job %s not found", jobID)
		}
		if job.Status == jobs.StatusSucceeded || job.Status == jobs.StatusFailed {
			return job
		}
		select {
		case <-deadline:
			t.Fatalf("Job %s never finished", jobID)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.server.App().Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestImportAcceptedAndProcessed(t *testing.T) {
	env := newTestEnv(t)
	if err := env.records.Seed(&models.FinancialRecord{
		RecordID: "fr-1",
		ChurchID: "c1",
		Amount:   decimal.NewFromFloat(100),
		Date:     time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Status:   models.RecordStatusOpen,
	}); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}

	csv := "date,description,amount\n2024-03-05,Tithe transfer,100.00\n"
	body, contentType := multipartImport(t, csv, defaultImportFields())

	req := httptest.NewRequest(http.MethodPost, "/api/churches/c1/bank-statements/imports", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := env.server.App().Test(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}

	var accepted struct {
		JobID string `json:"jobId"`
	}
	decodeBody(t, resp, &accepted)
	if accepted.JobID == "" {
		t.Fatal("Expected a job id")
	}

	job := waitForJob(t, env, accepted.JobID)
	if job.Status != jobs.StatusSucceeded {
		t.Fatalf("Expected SUCCEEDED, got %s (%s)", job.Status, job.Error)
	}
	if job.Outcome.Reconciled != 1 {
		t.Errorf("Expected 1 reconciled, got %+v", job.Outcome)
	}
}

func TestImportMissingFile(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/churches/c1/bank-statements/imports", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	resp, err := env.server.App().Test(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestImportInvalidMonth(t *testing.T) {
	env := newTestEnv(t)

	fields := defaultImportFields()
	fields["month"] = "13"
	body, contentType := multipartImport(t, "date,description,amount\n2024-03-05,x,1.00\n", fields)

	req := httptest.NewRequest(http.MethodPost, "/api/churches/c1/bank-statements/imports", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := env.server.App().Test(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestImportMalformedFileFailsJob(t *testing.T) {
	env := newTestEnv(t)

	csv := "date,description,amount\nnot-a-date,Broken,50.00\n"
	body, contentType := multipartImport(t, csv, defaultImportFields())

	req := httptest.NewRequest(http.MethodPost, "/api/churches/c1/bank-statements/imports", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := env.server.App().Test(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}

	var accepted struct {
		JobID string `json:"jobId"`
	}
	decodeBody(t, resp, &accepted)

	job := waitForJob(t, env, accepted.JobID)
	if job.Status != jobs.StatusFailed {
		t.Errorf("Expected FAILED, got %s", job.Status)
	}
	if job.Error == "" {
		t.Error("Expected failure message on job")
	}
}

func TestJobStatusNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.server.App().Test(httptest.NewRequest(http.MethodGet, "/api/jobs/unknown", nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestRetryEndpoint(t *testing.T) {
	env := newTestEnv(t)

	// Import an unmatched line synchronously through the queue.
	csv := "date,description,amount\n2024-03-05,Tithe transfer,100.00\n"
	body, contentType := multipartImport(t, csv, defaultImportFields())
	req := httptest.NewRequest(http.MethodPost, "/api/churches/c1/bank-statements/imports", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := env.server.App().Test(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var accepted struct {
		JobID string `json:"jobId"`
	}
	decodeBody(t, resp, &accepted)
	waitForJob(t, env, accepted.JobID)

	lines, err := env.store.List(context.Background(), store.ListCriteria{ChurchID: "c1"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(lines) != 1 || lines[0].ReconciliationStatus != models.StatusUnmatched {
		t.Fatalf("Expected 1 unmatched line, got %+v", lines)
	}

	// Correct the books, then retry over HTTP.
	if err := env.records.Seed(&models.FinancialRecord{
		RecordID: "fr-1",
		ChurchID: "c1",
		Amount:   decimal.NewFromFloat(100),
		Date:     time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Status:   models.RecordStatusOpen,
	}); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}

	retryURL := fmt.Sprintf("/api/churches/c1/bank-statements/%s/retry", lines[0].StatementID)
	retryResp, err := env.server.App().Test(httptest.NewRequest(http.MethodPost, retryURL, nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if retryResp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", retryResp.StatusCode)
	}

	var line models.BankStatementLine
	decodeBody(t, retryResp, &line)
	if line.ReconciliationStatus != models.StatusReconciled || line.FinancialRecordID != "fr-1" {
		t.Errorf("Expected reconciled line, got %+v", line)
	}
}

func TestRetryUnknownStatement(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/churches/c1/bank-statements/missing/retry", nil)
	resp, err := env.server.App().Test(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestListEndpoint(t *testing.T) {
	env := newTestEnv(t)

	csv := "date,description,amount\n" +
		"2024-03-05,Tithe transfer,100.00\n" +
		"2024-03-06,Utility payment,-89.90\n"
	body, contentType := multipartImport(t, csv, defaultImportFields())
	req := httptest.NewRequest(http.MethodPost, "/api/churches/c1/bank-statements/imports", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := env.server.App().Test(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var accepted struct {
		JobID string `json:"jobId"`
	}
	decodeBody(t, resp, &accepted)
	waitForJob(t, env, accepted.JobID)

	listResp, err := env.server.App().Test(httptest.NewRequest(http.MethodGet,
		"/api/churches/c1/bank-statements?status=unmatched&month=3&year=2024", nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", listResp.StatusCode)
	}

	var listing struct {
		Items []models.BankStatementLine `json:"items"`
		Count int                        `json:"count"`
	}
	decodeBody(t, listResp, &listing)
	if listing.Count != 2 || len(listing.Items) != 2 {
		t.Errorf("Expected 2 unmatched lines, got %+v", listing)
	}
}

func TestListInvalidStatus(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.server.App().Test(httptest.NewRequest(http.MethodGet,
		"/api/churches/c1/bank-statements?status=bogus", nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	env := newTestEnv(t)

	csv := "date,description,amount\n2024-03-05,Tithe transfer,100.00\n"
	body, contentType := multipartImport(t, csv, defaultImportFields())
	req := httptest.NewRequest(http.MethodPost, "/api/churches/c1/bank-statements/imports", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := env.server.App().Test(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var accepted struct {
		JobID string `json:"jobId"`
	}
	decodeBody(t, resp, &accepted)
	waitForJob(t, env, accepted.JobID)

	summaryResp, err := env.server.App().Test(httptest.NewRequest(http.MethodGet,
		"/api/churches/c1/bank-statements/summary?month=3&year=2024", nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if summaryResp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", summaryResp.StatusCode)
	}

	var summary struct {
		Pending    int64 `json:"pending"`
		Unmatched  int64 `json:"unmatched"`
		Reconciled int64 `json:"reconciled"`
	}
	decodeBody(t, summaryResp, &summary)
	if summary.Unmatched != 1 || summary.Reconciled != 0 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}
