// Package errors defines the typed error taxonomy for the finance service.
//
// Every error crossing a package boundary is a *FinanceError carrying a
// category, a machine-readable code, optional context fields, and a stack
// trace. The HTTP layer maps categories and codes to response statuses.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryRepository     ErrorCategory = "repository"
	CategoryDispatch       ErrorCategory = "dispatch"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileCorrupted  ErrorCode = "file_corrupted"

	// Parse errors
	CodeUnsupportedBank ErrorCode = "unsupported_bank"
	CodeMalformedRow    ErrorCode = "malformed_row"
	CodeMissingColumn   ErrorCode = "missing_column"
	CodeEncodingError   ErrorCode = "encoding_error"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"
	CodeInvalidStatus ErrorCode = "invalid_status"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Reconciliation errors
	CodeStatementNotFound ErrorCode = "statement_not_found"
	CodeProcessingError   ErrorCode = "processing_error"

	// Repository errors
	CodeConnectionFailed ErrorCode = "connection_failed"
	CodeWriteFailed      ErrorCode = "write_failed"
	CodeQueryFailed      ErrorCode = "query_failed"

	// Dispatch errors
	CodeQueueClosed    ErrorCode = "queue_closed"
	CodeDeliveryFailed ErrorCode = "delivery_failed"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// FinanceError is the base error type for all application errors
type FinanceError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *FinanceError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *FinanceError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *FinanceError) WithContext(key string, value interface{}) *FinanceError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// New creates a new FinanceError
func New(category ErrorCategory, code ErrorCode, message string) *FinanceError {
	return &FinanceError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with FinanceError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *FinanceError {
	if err == nil {
		return nil
	}

	return &FinanceError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// UnsupportedBankError indicates no parser is registered for the bank tag.
// It is a client-correctable input error.
func UnsupportedBankError(bank string) *FinanceError {
	return New(
		CategoryParse,
		CodeUnsupportedBank,
		fmt.Sprintf("no statement parser registered for bank '%s'", bank),
	).WithContext("bank", bank)
}

// StatementParseError indicates a malformed source file. The whole import
// aborts; nothing is persisted.
func StatementParseError(code ErrorCode, file string, row int, reason string, err error) *FinanceError {
	message := fmt.Sprintf("statement parse failed in %s at row %d: %s", file, row, reason)
	if row <= 0 {
		message = fmt.Sprintf("statement parse failed in %s: %s", file, reason)
	}

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	} else {
		result = New(CategoryParse, code, message)
	}

	return result.
		WithContext("file", file).
		WithContext("row", row).
		WithContext("reason", reason)
}

// StatementNotFoundError indicates a retry against a statement id that does
// not exist for the tenant. A statement belonging to another tenant produces
// the same error on purpose.
func StatementNotFoundError(churchID, statementID string) *FinanceError {
	return New(
		CategoryReconciliation,
		CodeStatementNotFound,
		fmt.Sprintf("bank statement %s not found for church %s", statementID, churchID),
	).
		WithContext("church_id", churchID).
		WithContext("statement_id", statementID)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *FinanceError {
	var message string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
	case CodeFileCorrupted:
		message = fmt.Sprintf("file appears to be corrupted: %s", path)
	default:
		message = fmt.Sprintf("file error: %s", path)
	}

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryFile, code, message)
	} else {
		result = New(CategoryFile, code, message)
	}

	return result.WithContext("file_path", path)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *FinanceError {
	var message string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
	case CodeInvalidStatus:
		message = fmt.Sprintf("invalid reconciliation status in field '%s': %v", field, value)
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
	}

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryValidation, code, message)
	} else {
		result = New(CategoryValidation, code, message)
	}

	return result.
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *FinanceError {
	var message string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
	}

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithContext("setting", setting).
		WithContext("value", value)
}

// RepositoryError creates a persistence-related error. These propagate to the
// caller unchanged; the core never retries them automatically.
func RepositoryError(code ErrorCode, operation string, err error) *FinanceError {
	var message string

	switch code {
	case CodeConnectionFailed:
		message = fmt.Sprintf("repository connection failed during %s", operation)
	case CodeWriteFailed:
		message = fmt.Sprintf("repository write failed during %s", operation)
	case CodeQueryFailed:
		message = fmt.Sprintf("repository query failed during %s", operation)
	default:
		message = fmt.Sprintf("repository error during %s", operation)
	}

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryRepository, code, message)
	} else {
		result = New(CategoryRepository, code, message)
	}

	return result.WithContext("operation", operation)
}

// DispatchError creates an event-dispatch error. Dispatch failures after a
// successful reconciliation are logged, never rolled back.
func DispatchError(code ErrorCode, eventType string, err error) *FinanceError {
	var message string

	switch code {
	case CodeQueueClosed:
		message = fmt.Sprintf("event queue closed while dispatching %s", eventType)
	case CodeDeliveryFailed:
		message = fmt.Sprintf("event delivery failed for %s", eventType)
	default:
		message = fmt.Sprintf("dispatch error for %s", eventType)
	}

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryDispatch, code, message)
	} else {
		result = New(CategoryDispatch, code, message)
	}

	return result.WithContext("event_type", eventType)
}

// InternalError creates an internal error
func InternalError(operation string, err error) *FinanceError {
	message := fmt.Sprintf("unexpected error during %s", operation)

	var result *FinanceError
	if err != nil {
		result = Wrap(err, CategoryInternal, CodeUnexpectedError, message)
	} else {
		result = New(CategoryInternal, CodeUnexpectedError, message)
	}

	return result.WithContext("operation", operation)
}

// Utility functions

// IsFinanceError checks if an error is a FinanceError
func IsFinanceError(err error) bool {
	_, ok := err.(*FinanceError)
	return ok
}

// AsFinanceError extracts a FinanceError from an error chain
func AsFinanceError(err error) (*FinanceError, bool) {
	var financeErr *FinanceError
	if errors.As(err, &financeErr) {
		return financeErr, true
	}
	return nil, false
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code ErrorCode) bool {
	if financeErr, ok := AsFinanceError(err); ok {
		return financeErr.Code == code
	}
	return false
}

// WrapIfNeeded wraps an error if it's not already a FinanceError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *FinanceError {
	if err == nil {
		return nil
	}

	if financeErr, ok := AsFinanceError(err); ok {
		return financeErr
	}

	return Wrap(err, category, code, message)
}
