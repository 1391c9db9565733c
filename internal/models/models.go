// Package models defines the domain entities of the reconciliation core:
// bank statement lines, their transient parser-produced form, and the
// referenced financial records they reconcile against.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus is the closed set of states a statement line moves
// through. RECONCILED is terminal.
type ReconciliationStatus string

const (
	// StatusPending marks a freshly imported line not yet matched.
	StatusPending ReconciliationStatus = "PENDING"
	// StatusUnmatched marks a line whose match attempt found zero or
	// multiple candidates. Re-enterable via retry.
	StatusUnmatched ReconciliationStatus = "UNMATCHED"
	// StatusReconciled marks a line linked to exactly one financial record.
	StatusReconciled ReconciliationStatus = "RECONCILED"
)

// String returns the string representation of the status
func (s ReconciliationStatus) String() string {
	return string(s)
}

// IsValid checks if the status is one of the closed set
func (s ReconciliationStatus) IsValid() bool {
	return s == StatusPending || s == StatusUnmatched || s == StatusReconciled
}

// IsTerminal reports whether the status permits no further transitions
func (s ReconciliationStatus) IsTerminal() bool {
	return s == StatusReconciled
}

// FinancialRecordStatus is the status of a referenced financial record.
// The core only ever writes StatusReconciled through the event consumer.
type FinancialRecordStatus string

const (
	RecordStatusOpen       FinancialRecordStatus = "OPEN"
	RecordStatusCleared    FinancialRecordStatus = "CLEARED"
	RecordStatusReconciled FinancialRecordStatus = "RECONCILED"
)

// BankStatementLine is one transaction row from an imported bank statement,
// normalized and persisted. StatementID is deterministic over the natural
// key, so re-importing the same file produces colliding, droppable inserts.
type BankStatementLine struct {
	StatementID           string               `json:"statementId" bson:"statement_id"`
	ChurchID              string               `json:"churchId" bson:"church_id"`
	Bank                  string               `json:"bank" bson:"bank"`
	AccountName           string               `json:"accountName" bson:"account_name"`
	AvailabilityAccountID string               `json:"availabilityAccountId" bson:"availability_account_id"`
	Month                 int                  `json:"month" bson:"month"`
	Year                  int                  `json:"year" bson:"year"`
	PostedAt              time.Time            `json:"postedAt" bson:"posted_at"`
	Amount                decimal.Decimal      `json:"amount" bson:"-"`
	Description           string               `json:"description" bson:"description"`
	ExternalReference     string               `json:"externalReference,omitempty" bson:"external_reference,omitempty"`
	ReconciliationStatus  ReconciliationStatus `json:"reconciliationStatus" bson:"reconciliation_status"`
	FinancialRecordID     string               `json:"financialRecordId,omitempty" bson:"financial_record_id,omitempty"`
	ReconciledAt          *time.Time           `json:"reconciledAt,omitempty" bson:"reconciled_at,omitempty"`
}

// IntermediateBankStatement is the parser output: one statement row before it
// gains identity and reconciliation state. It exists only between the parser
// and the store.
type IntermediateBankStatement struct {
	Row               int             `json:"row"`
	PostedAt          time.Time       `json:"postedAt"`
	Amount            decimal.Decimal `json:"amount"`
	Description       string          `json:"description"`
	ExternalReference string          `json:"externalReference,omitempty"`
}

// FinancialRecord is the internal ledger entry a statement line reconciles
// against. Owned by the accounts-payable/receivable contexts; the core reads
// candidates and updates the status field only.
type FinancialRecord struct {
	RecordID string                `json:"recordId" bson:"record_id"`
	ChurchID string                `json:"churchId" bson:"church_id"`
	Amount   decimal.Decimal       `json:"amount" bson:"-"`
	Date     time.Time             `json:"date" bson:"date"`
	Status   FinancialRecordStatus `json:"status" bson:"status"`
}

// NewBankStatementLine builds a persisted line from a parser row plus the
// import attribution. The resulting line starts PENDING.
func NewBankStatementLine(churchID, bank, accountName, availabilityAccountID string, month, year int, src *IntermediateBankStatement) *BankStatementLine {
	line := &BankStatementLine{
		ChurchID:              churchID,
		Bank:                  bank,
		AccountName:           accountName,
		AvailabilityAccountID: availabilityAccountID,
		Month:                 month,
		Year:                  year,
		PostedAt:              src.PostedAt,
		Amount:                src.Amount,
		Description:           src.Description,
		ExternalReference:     src.ExternalReference,
		ReconciliationStatus:  StatusPending,
	}
	line.StatementID = DeriveStatementID(line)
	return line
}

// DeriveStatementID computes the deterministic identity of a statement line
// from its natural key. When the bank supplies its own transaction reference
// that reference anchors the key; otherwise the normalized description stands
// in, so two legitimate same-day same-amount transactions with distinct
// descriptions do not collide.
func DeriveStatementID(line *BankStatementLine) string {
	ref := strings.TrimSpace(line.ExternalReference)
	if ref == "" {
		ref = normalizeDescription(line.Description)
	}

	key := strings.Join([]string{
		line.ChurchID,
		line.Bank,
		line.AccountName,
		line.PostedAt.Format("2006-01-02"),
		line.Amount.String(),
		ref,
	}, "|")

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func normalizeDescription(description string) string {
	return strings.ToUpper(strings.Join(strings.Fields(description), " "))
}

// Validate checks structural validity plus the reconciliation invariant:
// RECONCILED requires a financial record id and a reconciliation timestamp,
// any other status forbids both.
func (l *BankStatementLine) Validate() error {
	if strings.TrimSpace(l.StatementID) == "" {
		return fmt.Errorf("statement id cannot be empty")
	}

	if strings.TrimSpace(l.ChurchID) == "" {
		return fmt.Errorf("church id cannot be empty")
	}

	if strings.TrimSpace(l.Bank) == "" {
		return fmt.Errorf("bank cannot be empty")
	}

	if l.PostedAt.IsZero() {
		return fmt.Errorf("posted date cannot be zero")
	}

	if l.Amount.IsZero() {
		return fmt.Errorf("statement amount cannot be zero")
	}

	if l.Month < 1 || l.Month > 12 {
		return fmt.Errorf("invalid statement month: %d", l.Month)
	}

	if !l.ReconciliationStatus.IsValid() {
		return fmt.Errorf("invalid reconciliation status: %s", l.ReconciliationStatus)
	}

	if l.ReconciliationStatus == StatusReconciled {
		if l.FinancialRecordID == "" {
			return fmt.Errorf("reconciled line must carry a financial record id")
		}
		if l.ReconciledAt == nil {
			return fmt.Errorf("reconciled line must carry a reconciliation timestamp")
		}
	} else {
		if l.FinancialRecordID != "" {
			return fmt.Errorf("non-reconciled line must not carry a financial record id")
		}
		if l.ReconciledAt != nil {
			return fmt.Errorf("non-reconciled line must not carry a reconciliation timestamp")
		}
	}

	return nil
}

// String returns a string representation of the line
func (l *BankStatementLine) String() string {
	return fmt.Sprintf("BankStatementLine{ID: %s, Church: %s, Bank: %s, Amount: %s, Date: %s, Status: %s}",
		shortID(l.StatementID), l.ChurchID, l.Bank, l.Amount.String(),
		l.PostedAt.Format("2006-01-02"), l.ReconciliationStatus)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Validate performs basic validation on the IntermediateBankStatement
func (s *IntermediateBankStatement) Validate() error {
	if s.PostedAt.IsZero() {
		return fmt.Errorf("posted date cannot be zero")
	}

	if s.Amount.IsZero() {
		return fmt.Errorf("statement amount cannot be zero")
	}

	if strings.TrimSpace(s.Description) == "" && strings.TrimSpace(s.ExternalReference) == "" {
		return fmt.Errorf("statement row needs a description or an external reference")
	}

	return nil
}

// Validate performs basic validation on the FinancialRecord
func (r *FinancialRecord) Validate() error {
	if strings.TrimSpace(r.RecordID) == "" {
		return fmt.Errorf("record id cannot be empty")
	}

	if strings.TrimSpace(r.ChurchID) == "" {
		return fmt.Errorf("church id cannot be empty")
	}

	if r.Amount.IsZero() {
		return fmt.Errorf("record amount cannot be zero")
	}

	if r.Date.IsZero() {
		return fmt.Errorf("record date cannot be zero")
	}

	return nil
}

// SameDay reports whether two instants fall on the same calendar date in UTC.
func SameDay(a, b time.Time) bool {
	return a.UTC().Format("2006-01-02") == b.UTC().Format("2006-01-02")
}

// Utility functions for type conversion

// ParseDecimalFromString parses a monetary amount from string. It accepts
// plain decimals, US-style thousand separators (1,234.56) and Brazilian
// statement formats (1.234,56), with an optional R$ or $ prefix.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "R$", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimSpace(s)

	// Brazilian format: comma is the decimal separator, dot groups thousands.
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	if lastComma > lastDot {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseTimeWithFormats attempts to parse a date from string using the formats
// seen across supported bank exports.
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		"2006-01-02",
		"02/01/2006",
		"02-01-2006",
		"2006/01/02",
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// ParseStatus parses and validates a reconciliation status from string
func ParseStatus(s string) (ReconciliationStatus, error) {
	status := ReconciliationStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid reconciliation status '%s'", s)
	}
	return status, nil
}
