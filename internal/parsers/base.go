// Package parsers converts bank statement exports into intermediate statement
// rows. Each supported bank has its own parser implementing the Parser
// interface; the Registry resolves the right one from the bank tag supplied
// with an import.
//
// Parsing is strict: a single malformed row aborts the whole file with a
// parse error, so an import either yields every row or nothing. Partial
// imports would make the idempotent re-import guarantees meaningless.
package parsers

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"church-finance-service/internal/models"
	"church-finance-service/pkg/errors"
	"church-finance-service/pkg/logger"
)

// ParseRequest carries a statement file into a parser. Filename is used for
// error reporting only.
type ParseRequest struct {
	Reader   io.Reader
	Filename string
}

// Parser converts one bank's statement export format into intermediate rows.
type Parser interface {
	// Supports reports whether this parser handles the given bank tag.
	Supports(bank string) bool

	// Parse reads the whole file and returns every statement row, or an
	// error if any row is malformed. On error nothing is returned.
	Parse(ctx context.Context, req ParseRequest) ([]*models.IntermediateBankStatement, error)
}

// ParseConfig holds the CSV dialect of a bank export.
type ParseConfig struct {
	Delimiter        rune
	HasHeader        bool
	SkipEmptyRows    bool
	ValidateEncoding bool
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        ',',
		HasHeader:        true,
		SkipEmptyRows:    true,
		ValidateEncoding: true,
	}
}

// BaseParser provides the CSV machinery shared by the bank parsers: encoding
// validation, header mapping and strict record reading.
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}

	return &BaseParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("parser"),
	}
}

// ParseContext holds state during a single file parse.
type ParseContext struct {
	Filename   string
	LineNumber int
	Headers    []string
	HeaderMap  map[string]int
	ctx        context.Context
}

// NewParseContext creates a new parsing context
func NewParseContext(ctx context.Context, filename string) *ParseContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &ParseContext{
		Filename:  filename,
		HeaderMap: make(map[string]int),
		ctx:       ctx,
	}
}

// IsCancelled checks if the parsing context has been cancelled
func (pc *ParseContext) IsCancelled() bool {
	select {
	case <-pc.ctx.Done():
		return true
	default:
		return false
	}
}

// GetColumnIndex returns the index of a column by name, or -1 if not found.
// Lookup is case-insensitive because bank exports are inconsistent about
// header casing.
func (pc *ParseContext) GetColumnIndex(name string) int {
	if index, exists := pc.HeaderMap[name]; exists {
		return index
	}

	lowerName := strings.ToLower(name)
	for header, index := range pc.HeaderMap {
		if strings.ToLower(header) == lowerName {
			return index
		}
	}

	return -1
}

// NewReader buffers the request body, validates its encoding and returns a
// configured csv.Reader over it. Statement exports are small enough to hold
// in memory; buffering lets a malformed file fail before any row is emitted.
func (bp *BaseParser) NewReader(req ParseRequest) (*csv.Reader, error) {
	data, err := io.ReadAll(req.Reader)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, req.Filename, err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.StatementParseError(errors.CodeMalformedRow, req.Filename, 0, "file is empty", nil)
	}

	if bp.config.ValidateEncoding && !utf8.Valid(data) {
		return nil, errors.StatementParseError(errors.CodeEncodingError, req.Filename, 0, "file is not valid UTF-8", nil)
	}

	// Strip a UTF-8 BOM; several banks prepend one to their exports.
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = bp.config.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	return reader, nil
}

// ReadHeaders reads the header row and validates that every required column
// is present.
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, parseCtx *ParseContext, requiredHeaders []string) error {
	if !bp.config.HasHeader {
		parseCtx.Headers = make([]string, len(requiredHeaders))
		copy(parseCtx.Headers, requiredHeaders)
		bp.buildHeaderMap(parseCtx)
		return nil
	}

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return errors.StatementParseError(errors.CodeMalformedRow, parseCtx.Filename, 0, "file contains no header row", nil)
		}
		return errors.StatementParseError(errors.CodeMalformedRow, parseCtx.Filename, 1, "failed to read header row", err)
	}

	parseCtx.LineNumber++
	parseCtx.Headers = cleanHeaders(headers)
	bp.buildHeaderMap(parseCtx)

	missing := bp.findMissingHeaders(parseCtx, requiredHeaders)
	if len(missing) > 0 {
		bp.logger.WithFields(logger.Fields{
			"file":              parseCtx.Filename,
			"missing_headers":   missing,
			"available_headers": parseCtx.Headers,
		}).Warn("Statement file is missing required columns")

		return errors.StatementParseError(
			errors.CodeMissingColumn,
			parseCtx.Filename,
			parseCtx.LineNumber,
			"missing required columns: "+strings.Join(missing, ", "),
			nil,
		)
	}

	return nil
}

func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		cleaned[i] = strings.TrimSpace(header)
	}
	return cleaned
}

func (bp *BaseParser) buildHeaderMap(parseCtx *ParseContext) {
	parseCtx.HeaderMap = make(map[string]int)
	for i, header := range parseCtx.Headers {
		parseCtx.HeaderMap[header] = i
	}
}

func (bp *BaseParser) findMissingHeaders(parseCtx *ParseContext, required []string) []string {
	var missing []string
	for _, header := range required {
		if parseCtx.GetColumnIndex(header) == -1 {
			missing = append(missing, header)
		}
	}
	return missing
}

// ReadRecord reads the next data row, skipping empty rows when configured.
// Returns io.EOF at the end of the file.
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		if parseCtx.IsCancelled() {
			return nil, parseCtx.ctx.Err()
		}

		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, err
			}
			return nil, errors.StatementParseError(
				errors.CodeMalformedRow,
				parseCtx.Filename,
				parseCtx.LineNumber+1,
				"failed to read CSV record",
				err,
			)
		}

		parseCtx.LineNumber++

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}

		return record, nil
	}
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// GetFieldValue retrieves a named field from a record. A row shorter than its
// header is malformed.
func (bp *BaseParser) GetFieldValue(record []string, parseCtx *ParseContext, fieldName string) (string, error) {
	index := parseCtx.GetColumnIndex(fieldName)
	if index == -1 {
		return "", errors.StatementParseError(
			errors.CodeMissingColumn,
			parseCtx.Filename,
			parseCtx.LineNumber,
			"column '"+fieldName+"' not found",
			nil,
		)
	}

	if index >= len(record) {
		return "", errors.StatementParseError(
			errors.CodeMalformedRow,
			parseCtx.Filename,
			parseCtx.LineNumber,
			"row has fewer columns than the header",
			nil,
		)
	}

	return strings.TrimSpace(record[index]), nil
}
