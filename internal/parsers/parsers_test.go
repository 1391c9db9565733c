package parsers

import (
	"context"
	"strings"
	"testing"

	"church-finance-service/pkg/errors"
)

func parseWith(t *testing.T, parser Parser, content string) ([]*intermediateRow, error) {
	t.Helper()
	statements, err := parser.Parse(context.Background(), ParseRequest{
		Reader:   strings.NewReader(content),
		Filename: "statement.csv",
	})
	if err != nil {
		return nil, err
	}

	rows := make([]*intermediateRow, len(statements))
	for i, s := range statements {
		rows[i] = &intermediateRow{
			amount:      s.Amount.String(),
			date:        s.PostedAt.Format("2006-01-02"),
			description: s.Description,
			reference:   s.ExternalReference,
		}
	}
	return rows, nil
}

type intermediateRow struct {
	amount      string
	date        string
	description string
	reference   string
}

func TestRegistryResolve(t *testing.T) {
	registry := NewDefaultRegistry()

	tests := []struct {
		bank     string
		wantType string
	}{
		{"BRADESCO", "*parsers.BradescoParser"},
		{"bradesco", "*parsers.BradescoParser"},
		{" Santander ", "*parsers.SantanderParser"},
		{"GENERIC", "*parsers.GenericParser"},
		{"generic", "*parsers.GenericParser"},
	}

	for _, tt := range tests {
		t.Run(tt.bank, func(t *testing.T) {
			parser, err := registry.Resolve(tt.bank)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			switch tt.wantType {
			case "*parsers.BradescoParser":
				if _, ok := parser.(*BradescoParser); !ok {
					t.Errorf("Expected BradescoParser, got %T", parser)
				}
			case "*parsers.SantanderParser":
				if _, ok := parser.(*SantanderParser); !ok {
					t.Errorf("Expected SantanderParser, got %T", parser)
				}
			case "*parsers.GenericParser":
				if _, ok := parser.(*GenericParser); !ok {
					t.Errorf("Expected GenericParser, got %T", parser)
				}
			}
		})
	}
}

func TestRegistryResolveUnsupportedBank(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewBradescoParser())

	_, err := registry.Resolve("ITAU")
	if err == nil {
		t.Fatal("Expected error for unregistered bank")
	}
	if !errors.HasCode(err, errors.CodeUnsupportedBank) {
		t.Errorf("Expected unsupported_bank code, got %v", err)
	}
}

func TestRegistryResolveEmptyBank(t *testing.T) {
	registry := NewDefaultRegistry()

	if _, err := registry.Resolve(""); err == nil {
		t.Error("Expected error for empty bank tag")
	}
}

func TestRegistryResolveUnknownTagDoesNotFallBack(t *testing.T) {
	registry := NewDefaultRegistry()

	// A typo'd tag must not be misread as the generic layout.
	_, err := registry.Resolve("BRADESCCO")
	if !errors.HasCode(err, errors.CodeUnsupportedBank) {
		t.Errorf("Expected unsupported_bank for unknown tag, got %v", err)
	}
}

func TestBradescoParse(t *testing.T) {
	content := "Data;Lancamento;Documento;Valor\n" +
		"05/03/2024;PIX RECEBIDO JOAO;DOC123;1.250,00\n" +
		"06/03/2024;PAGTO FORNECEDOR;;-340,50\n"

	rows, err := parseWith(t, NewBradescoParser(), content)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}

	if rows[0].amount != "1250" || rows[0].date != "2024-03-05" || rows[0].reference != "DOC123" {
		t.Errorf("Unexpected first row: %+v", rows[0])
	}
	if rows[1].amount != "-340.5" || rows[1].reference != "" {
		t.Errorf("Unexpected second row: %+v", rows[1])
	}
}

func TestBradescoParseSkipsEmptyRows(t *testing.T) {
	content := "Data;Lancamento;Documento;Valor\n" +
		";;;\n" +
		"05/03/2024;DIZIMO;;100,00\n" +
		"\n"

	rows, err := parseWith(t, NewBradescoParser(), content)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected 1 row, got %d", len(rows))
	}
}

func TestBradescoParseAbortsOnMalformedRow(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "bad date",
			content: "Data;Lancamento;Documento;Valor\n" +
				"05/03/2024;OK;;100,00\n" +
				"not-a-date;BROKEN;;50,00\n",
		},
		{
			name: "bad amount",
			content: "Data;Lancamento;Documento;Valor\n" +
				"05/03/2024;BROKEN;;abc\n",
		},
		{
			name: "zero amount",
			content: "Data;Lancamento;Documento;Valor\n" +
				"05/03/2024;SALDO;;0,00\n",
		},
		{
			name: "short row",
			content: "Data;Lancamento;Documento;Valor\n" +
				"05/03/2024;ONLY TWO FIELDS\n",
		},
		{
			name:    "missing column",
			content: "Data;Documento;Valor\n05/03/2024;;100,00\n",
		},
		{
			name:    "empty file",
			content: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := parseWith(t, NewBradescoParser(), tt.content)
			if err == nil {
				t.Fatal("Expected parse error")
			}
			if rows != nil {
				t.Error("Expected no rows on parse failure")
			}

			financeErr, ok := errors.AsFinanceError(err)
			if !ok {
				t.Fatalf("Expected FinanceError, got %T", err)
			}
			if financeErr.Category != errors.CategoryParse && financeErr.Category != errors.CategoryFile {
				t.Errorf("Expected parse category, got %s", financeErr.Category)
			}
		})
	}
}

func TestSantanderParseCreditAndDebit(t *testing.T) {
	content := "Data;Historico;Documento;Credito;Debito\n" +
		"05/03/2024;OFERTA CULTO;REF1;500,00;\n" +
		"06/03/2024;CONTA DE LUZ;REF2;;230,10\n"

	rows, err := parseWith(t, NewSantanderParser(), content)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].amount != "500" {
		t.Errorf("Expected credit 500, got %s", rows[0].amount)
	}
	if rows[1].amount != "-230.1" {
		t.Errorf("Expected debit -230.1, got %s", rows[1].amount)
	}
}

func TestSantanderParseRejectsAmbiguousAmounts(t *testing.T) {
	both := "Data;Historico;Documento;Credito;Debito\n" +
		"05/03/2024;BROKEN;;100,00;50,00\n"
	if _, err := parseWith(t, NewSantanderParser(), both); err == nil {
		t.Error("Expected error when both credit and debit are set")
	}

	neither := "Data;Historico;Documento;Credito;Debito\n" +
		"05/03/2024;BROKEN;;;\n"
	if _, err := parseWith(t, NewSantanderParser(), neither); err == nil {
		t.Error("Expected error when neither credit nor debit is set")
	}
}

func TestGenericParse(t *testing.T) {
	content := "date,description,reference,amount\n" +
		"2024-03-05,Tithe transfer,TXN-9,\"1,250.00\"\n" +
		"2024-03-06,Utility payment,,-89.90\n"

	rows, err := parseWith(t, NewGenericParser(), content)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].amount != "1250" || rows[0].reference != "TXN-9" {
		t.Errorf("Unexpected first row: %+v", rows[0])
	}
	if rows[1].amount != "-89.9" {
		t.Errorf("Unexpected second row: %+v", rows[1])
	}
}

func TestGenericParseWithoutReferenceColumn(t *testing.T) {
	content := "date,description,amount\n" +
		"2024-03-05,Donation,75.00\n"

	rows, err := parseWith(t, NewGenericParser(), content)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].reference != "" {
		t.Errorf("Expected one row without reference, got %+v", rows)
	}
}

func TestGenericParseHeaderCaseInsensitive(t *testing.T) {
	content := "Date,Description,Amount\n" +
		"2024-03-05,Donation,75.00\n"

	rows, err := parseWith(t, NewGenericParser(), content)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected 1 row, got %d", len(rows))
	}
}

func TestParseCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	content := "date,description,amount\n" +
		"2024-03-05,Donation,75.00\n"

	_, err := NewGenericParser().Parse(ctx, ParseRequest{
		Reader:   strings.NewReader(content),
		Filename: "statement.csv",
	})
	if err == nil {
		t.Error("Expected error from cancelled context")
	}
}

func TestParseRejectsInvalidEncoding(t *testing.T) {
	content := "date,description,amount\n" +
		"2024-03-05,Caf\xe9 da manh\xe3,75.00\n"

	_, err := NewGenericParser().Parse(context.Background(), ParseRequest{
		Reader:   strings.NewReader(content),
		Filename: "statement.csv",
	})
	if err == nil {
		t.Fatal("Expected encoding error for Latin-1 content")
	}
	if !errors.HasCode(err, errors.CodeEncodingError) {
		t.Errorf("Expected encoding_error code, got %v", err)
	}
}

func TestParseStripsByteOrderMark(t *testing.T) {
	content := "\xEF\xBB\xBFdate,description,amount\n" +
		"2024-03-05,Donation,75.00\n"

	rows, err := parseWith(t, NewGenericParser(), content)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected 1 row, got %d", len(rows))
	}
}
