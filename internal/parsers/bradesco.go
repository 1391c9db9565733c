package parsers

import (
	"context"
	"io"

	"church-finance-service/internal/models"
	"church-finance-service/pkg/errors"
	"church-finance-service/pkg/logger"
)

// Bradesco exports use semicolon-delimited CSV with Brazilian date and amount
// formats. A single signed Valor column carries credits and debits.
const (
	bradescoColumnDate        = "Data"
	bradescoColumnDescription = "Lancamento"
	bradescoColumnDocument    = "Documento"
	bradescoColumnAmount      = "Valor"
)

// BradescoParser parses Bradesco checking account exports.
type BradescoParser struct {
	*BaseParser
	logger logger.Logger
}

// NewBradescoParser creates a parser for the Bradesco export layout.
func NewBradescoParser() *BradescoParser {
	config := &ParseConfig{
		Delimiter:        ';',
		HasHeader:        true,
		SkipEmptyRows:    true,
		ValidateEncoding: true,
	}

	return &BradescoParser{
		BaseParser: NewBaseParser(config),
		logger:     logger.GetGlobalLogger().WithComponent("bradesco_parser"),
	}
}

// Supports reports whether this parser handles the given bank tag.
func (p *BradescoParser) Supports(bank string) bool {
	return bank == "BRADESCO"
}

// Parse reads a Bradesco export and returns every statement row. Any
// malformed row aborts the file.
func (p *BradescoParser) Parse(ctx context.Context, req ParseRequest) ([]*models.IntermediateBankStatement, error) {
	reader, err := p.NewReader(req)
	if err != nil {
		return nil, err
	}

	parseCtx := NewParseContext(ctx, req.Filename)
	required := []string{bradescoColumnDate, bradescoColumnDescription, bradescoColumnAmount}
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
	}).Debug("Parsed Bradesco statement file")

	return statements, nil
}

func (p *BradescoParser) parseRecord(record []string, parseCtx *ParseContext) (*models.IntermediateBankStatement, error) {
	dateStr, err := p.GetFieldValue(record, parseCtx, bradescoColumnDate)
	if err != nil {
		return nil, err
	}
	postedAt, err := models.ParseTimeWithFormats(dateStr)
	if err != nil {
		return nil, errors.StatementParseError(errors.CodeMalformedRow, parseCtx.Filename, parseCtx.LineNumber, "invalid posting date '"+dateStr+"'", err)
	}

	description, err := p.GetFieldValue(record, parseCtx, bradescoColumnDescription)
	if err != nil {
		return nil, err
	}

	amountStr, err := p.GetFieldValue(record, parseCtx, bradescoColumnAmount)
	if err != nil {
		return nil, err
	}
	amount, err := models.ParseDecimalFromString(amountStr)
	if err != nil {
		return nil, errors.StatementParseError(errors.CodeMalformedRow, parseCtx.Filename, parseCtx.LineNumber, "invalid amount '"+amountStr+"'", err)
	}

	// The document column is optional in older exports.
	document := ""
	if parseCtx.GetColumnIndex(bradescoColumnDocument) != -1 {
		document, err = p.GetFieldValue(record, parseCtx, bradescoColumnDocument)
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
