package api

import (
	"church-finance-service/pkg/errors"

	"github.com/gofiber/fiber/v2"
)

// fail maps a service error onto an HTTP response. Clients see the category,
// code and message; context fields stay in the logs.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	financeErr, ok := errors.AsFinanceError(err)
	if !ok {
		s.logger.WithError(err).Error("Unclassified error reached the API")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}

	status := statusFor(financeErr)
	if status >= fiber.StatusInternalServerError {
		s.logger.WithError(financeErr).Error("Request failed")
	} else {
		s.logger.WithError(financeErr).Debug("Request rejected")
	}

	return c.Status(status).JSON(fiber.Map{
		"error":    financeErr.Message,
		"category": financeErr.Category,
		"code":     financeErr.Code,
	})
}

// statusFor maps error taxonomy to HTTP statuses. Malformed uploads are
// unprocessable rather than bad requests: the request shape was fine, the
// file content was not.
func statusFor(err *errors.FinanceError) int {
	if err.Code == errors.CodeStatementNotFound {
		return fiber.StatusNotFound
	}

	switch err.Category {
	case errors.CategoryParse, errors.CategoryFile:
		return fiber.StatusUnprocessableEntity
	case errors.CategoryValidation:
		return fiber.StatusBadRequest
	case errors.CategoryDispatch:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
