package api

import (
	"io"
	"strconv"
	"strings"

	"church-finance-service/internal/jobs"
	"church-finance-service/internal/models"
	"church-finance-service/internal/store"
	"church-finance-service/pkg/errors"
	"church-finance-service/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleImport accepts a multipart upload and queues it as a background job.
// The response carries the job id for polling.
func (s *Server) handleImport(c *fiber.Ctx) error {
	churchID := c.Params("churchId")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return s.fail(c, errors.ValidationError(errors.CodeMissingField, "file", "", err))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return s.fail(c, errors.FileError(errors.CodeFileCorrupted, fileHeader.Filename, err))
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		return s.fail(c, errors.FileError(errors.CodeFileCorrupted, fileHeader.Filename, err))
	}

	month, err := strconv.Atoi(c.FormValue("month"))
	if err != nil {
		return s.fail(c, errors.ValidationError(errors.CodeInvalidDate, "month", c.FormValue("month"), err))
	}
	year, err := strconv.Atoi(c.FormValue("year"))
	if err != nil {
		return s.fail(c, errors.ValidationError(errors.CodeInvalidDate, "year", c.FormValue("year"), err))
	}

	job := jobs.NewImportJob(
		churchID,
		strings.ToUpper(strings.TrimSpace(c.FormValue("bank"))),
		c.FormValue("accountName"),
		c.FormValue("availabilityAccountId"),
		month,
		year,
		fileHeader.Filename,
		payload,
	)

	if err := s.queue.Publish(c.Context(), job); err != nil {
		return s.fail(c, err)
	}

	s.logger.WithFields(logger.Fields{
		"church_id": churchID,
		"job_id":    job.ID,
		"bank":      job.Bank,
	}).Info("Import accepted")

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"jobId":  job.ID,
		"status": job.Status,
	})
}

func (s *Server) handleJobStatus(c *fiber.Ctx) error {
	job, exists := s.queue.Get(c.Params("jobId"))
	if !exists {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "job not found",
		})
	}

	return c.JSON(job)
}

// handleRetry re-runs matching for one line inline and returns its final
// state.
func (s *Server) handleRetry(c *fiber.Ctx) error {
	line, err := s.service.Retry(c.Context(), c.Params("churchId"), c.Params("statementId"))
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(line)
}

func (s *Server) handleList(c *fiber.Ctx) error {
	criteria := store.ListCriteria{
		ChurchID:              c.Params("churchId"),
		AvailabilityAccountID: c.Query("availabilityAccountId"),
		Month:                 c.QueryInt("month"),
		Year:                  c.QueryInt("year"),
		Limit:                 int64(c.QueryInt("limit")),
		Offset:                int64(c.QueryInt("offset")),
	}

	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return s.fail(c, errors.ValidationError(errors.CodeInvalidStatus, "status", raw, err))
		}
		criteria.Status = status
	}

	lines, err := s.service.List(c.Context(), criteria)
	if err != nil {
		return s.fail(c, err)
	}

	if lines == nil {
		lines = []*models.BankStatementLine{}
	}

	return c.JSON(fiber.Map{
		"items": lines,
		"count": len(lines),
	})
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	counts, err := s.service.Summary(c.Context(), c.Params("churchId"), c.QueryInt("month"), c.QueryInt("year"))
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"pending":    counts[models.StatusPending],
		"unmatched":  counts[models.StatusUnmatched],
		"reconciled": counts[models.StatusReconciled],
	})
}
