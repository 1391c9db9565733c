package parsers

import (
	"context"
	"io"

	"church-finance-service/internal/models"
	"church-finance-service/pkg/errors"
	"church-finance-service/pkg/logger"
)

// BankGeneric tags imports that use the documented generic layout instead of
// a bank-specific export.
const BankGeneric = "GENERIC"

// The generic layout is the comma-delimited export the frontend documents for
// banks without a dedicated parser: date, description, reference, amount.
const (
	genericColumnDate        = "date"
	genericColumnDescription = "description"
	genericColumnReference   = "reference"
	genericColumnAmount      = "amount"
)

// GenericParser parses the documented generic CSV layout.
type GenericParser struct {
	*BaseParser
	logger logger.Logger
}

// NewGenericParser creates a parser for the generic export layout.
func NewGenericParser() *GenericParser {
	return &GenericParser{
		BaseParser: NewBaseParser(DefaultParseConfig()),
		logger:     logger.GetGlobalLogger().WithComponent("generic_parser"),
	}
}

// Supports reports true for the GENERIC tag only. A misspelled bank tag
// surfaces as unsupported instead of being misread as the generic layout.
func (p *GenericParser) Supports(bank string) bool {
	return bank == BankGeneric
}

// Parse reads a generic-layout export and returns every statement row. Any
// malformed row aborts the file.
func (p *GenericParser) Parse(ctx context.Context, req ParseRequest) ([]*models.IntermediateBankStatement, error) {
	reader, err := p.NewReader(req)
	if err != nil {
		return nil, err
	}

	parseCtx := NewParseContext(ctx, req.Filename)
	required := []string{genericColumnDate, genericColumnDescription, genericColumnAmount}
	if err := p.ReadHeaders(reader, parseCtx, required); err != nil {
		return nil, err
	}

	var statements []*models.IntermediateBankStatement

	for {
		record, err := p.ReadRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		statement, err := p.parseRecord(record, parseCtx)
		if err != nil {
			return nil, err
		}

		statements = append(statements, statement)
	}

	p.logger.WithFields(logger.Fields{
		"file": req.Filename,
		"rows": len(statements),
	}).Debug("Parsed generic statement file")

	return statements, nil
}

func (p *GenericParser) parseRecord(record []string, parseCtx *ParseContext) (*models.IntermediateBankStatement, error) {
	dateStr, err := p.GetFieldValue(record, parseCtx, genericColumnDate)
	if err != nil {
		return nil, err
	}
	postedAt, err := models.ParseTimeWithFormats(dateStr)
	if err != nil {
		return nil, errors.StatementParseError(errors.CodeMalformedRow, parseCtx.Filename, parseCtx.LineNumber, "invalid posting date '"+dateStr+"'", err)
	}

	description, err := p.GetFieldValue(record, parseCtx, genericColumnDescription)
	if err != nil {
		return nil, err
	}

	amountStr, err := p.GetFieldValue(record, parseCtx, genericColumnAmount)
	if err != nil {
		return nil, err
	}
	amount, err := models.ParseDecimalFromString(amountStr)
	if err != nil {
		return nil, errors.StatementParseError(errors.CodeMalformedRow, parseCtx.Filename, parseCtx.LineNumber, "invalid amount '"+amountStr+"'", err)
	}

	reference := ""
	if parseCtx.GetColumnIndex(genericColumnReference) != -1 {
		reference, err = p.GetFieldValue(record, parseCtx, genericColumnReference)
		if err != nil {
			return nil, err
		}
	}

	statement := &models.IntermediateBankStatement{
		Row:               parseCtx.LineNumber,
		PostedAt:          postedAt,
		Amount:            amount,
		Description:       description,
		ExternalReference: reference,
	}

	if err := statement.Validate(); err != nil {
		return nil, errors.StatementParseError(errors.CodeMalformedRow, parseCtx.Filename, parseCtx.LineNumber, err.Error(), nil)
	}

	return statement, nil
}
