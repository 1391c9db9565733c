package parsers

import (
	"context"
	"io"

	"church-finance-service/internal/models"
	"church-finance-service/pkg/errors"
	"church-finance-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Santander exports split the amount into separate credit and debit columns;
// exactly one of them is populated per row. Debits arrive as positive numbers
// and are negated here so every statement row carries a signed amount.
const (
	santanderColumnDate        = "Data"
	santanderColumnDescription = "Historico"
	santanderColumnDocument    = "Documento"
	santanderColumnCredit      = "Credito"
	santanderColumnDebit       = "Debito"
)

// SantanderParser parses Santander checking account exports.
type SantanderParser struct {
	*BaseParser
	logger logger.Logger
}

// NewSantanderParser creates a parser for the Santander export layout.
func NewSantanderParser() *SantanderParser {
	config := &ParseConfig{
		Delimiter:        ';',
		HasHeader:        true,
		SkipEmptyRows:    true,
		ValidateEncoding: true,
	}

	return &SantanderParser{
		BaseParser: NewBaseParser(config),
		logger:     logger.GetGlobalLogger().WithComponent("santander_parser"),
	}
}

// Supports reports whether this parser handles the given bank tag.
func (p *SantanderParser) Supports(bank string) bool {
	return bank == "SANTANDER"
}

// Parse reads a Santander export and returns every statement row. Any
// malformed row aborts the file.
func (p *SantanderParser) Parse(ctx context.Context, req ParseRequest) ([]*models.IntermediateBankStatement, error) {
	reader, err := p.NewReader(req)
	if err != nil {
		return nil, err
	}

	parseCtx := NewParseContext(ctx, req.Filename)
	required := []string{santanderColumnDate, santanderColumnDescription, santanderColumnCredit, santanderColumnDebit}
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
	}).Debug("Parsed Santander statement file")

	return statements, nil
}

func (p *SantanderParser) parseRecord(record []string, parseCtx *ParseContext) (*models.IntermediateBankStatement, error) {
	dateStr, err := p.GetFieldValue(record, parseCtx, santanderColumnDate)
	if err != nil {
		return nil, err
	}
	postedAt, err := models.ParseTimeWithFormats(dateStr)
	if err != nil {
		return nil, errors.StatementParseError(errors.CodeMalformedRow, parseCtx.Filename, parseCtx.LineNumber, "invalid posting date '"+dateStr+"'", err)
	}

	description, err := p.GetFieldValue(record, parseCtx, santanderColumnDescription)
	if err != nil {
		return nil, err
	}

	amount, err := p.parseAmount(record, parseCtx)
	if err != nil {
		return nil, err
	}

	document := ""
	if parseCtx.GetColumnIndex(santanderColumnDocument) != -1 {
		document, err = p.GetFieldValue(record, parseCtx, santanderColumnDocument)
		if err != nil {
			return nil, err
		}
	}

	statement := &models.IntermediateBankStatement{
		Row:               parseCtx.LineNumber,
		PostedAt:          postedAt,
		Amount:            amount,
		Description:       description,
		ExternalReference: document,
	}

	if err := statement.Validate(); err != nil {
		return nil, errors.StatementParseError(errors.CodeMalformedRow, parseCtx.Filename, parseCtx.LineNumber, err.Error(), nil)
	}

	return statement, nil
}

func (p *SantanderParser) parseAmount(record []string, parseCtx *ParseContext) (decimal.Decimal, error) {
	creditStr, err := p.GetFieldValue(record, parseCtx, santanderColumnCredit)
	if err != nil {
		return decimal.Zero, err
	}
	debitStr, err := p.GetFieldValue(record, parseCtx, santanderColumnDebit)
	if err != nil {
		return decimal.Zero, err
	}

	hasCredit := creditStr != ""
	hasDebit := debitStr != ""

	switch {
	case hasCredit && hasDebit:
		return decimal.Zero, errors.StatementParseError(errors.CodeMalformedRow, parseCtx.Filename, parseCtx.LineNumber, "row carries both a credit and a debit amount", nil)
	case hasCredit:
		amount, err := models.ParseDecimalFromString(creditStr)
		if err != nil {
			return decimal.Zero, errors.StatementParseError(errors.CodeMalformedRow, parseCtx.Filename, parseCtx.LineNumber, "invalid credit amount '"+creditStr+"'", err)
		}
		return amount, nil
	case hasDebit:
		amount, err := models.ParseDecimalFromString(debitStr)
		if err != nil {
			return decimal.Zero, errors.StatementParseError(errors.CodeMalformedRow, parseCtx.Filename, parseCtx.LineNumber, "invalid debit amount '"+debitStr+"'", err)
		}
		return amount.Abs().Neg(), nil
	default:
		return decimal.Zero, errors.StatementParseError(errors.CodeMalformedRow, parseCtx.Filename, parseCtx.LineNumber, "row carries neither a credit nor a debit amount", nil)
	}
}
