package store

import (
	"context"
	"time"

	"church-finance-service/internal/models"
	"church-finance-service/pkg/errors"
	"church-finance-service/pkg/logger"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const statementCollection = "bank_statements"

// lineDocument is the Mongo shape of a statement line. Amounts are stored as
// decimal strings so no precision is lost in transit.
type lineDocument struct {
	StatementID           string     `bson:"statement_id"`
	ChurchID              string     `bson:"church_id"`
	Bank                  string     `bson:"bank"`
	AccountName           string     `bson:"account_name"`
	AvailabilityAccountID string     `bson:"availability_account_id"`
	Month                 int        `bson:"month"`
	Year                  int        `bson:"year"`
	PostedAt              time.Time  `bson:"posted_at"`
	Amount                string     `bson:"amount"`
	Description           string     `bson:"description"`
	ExternalReference     string     `bson:"external_reference,omitempty"`
	ReconciliationStatus  string     `bson:"reconciliation_status"`
	FinancialRecordID     string     `bson:"financial_record_id,omitempty"`
	ReconciledAt          *time.Time `bson:"reconciled_at,omitempty"`
}

func toDocument(line *models.BankStatementLine) *lineDocument {
	return &lineDocument{
		StatementID:           line.StatementID,
		ChurchID:              line.ChurchID,
		Bank:                  line.Bank,
		AccountName:           line.AccountName,
		AvailabilityAccountID: line.AvailabilityAccountID,
		Month:                 line.Month,
		Year:                  line.Year,
		PostedAt:              line.PostedAt.UTC(),
		Amount:                line.Amount.String(),
		Description:           line.Description,
		ExternalReference:     line.ExternalReference,
		ReconciliationStatus:  line.ReconciliationStatus.String(),
		FinancialRecordID:     line.FinancialRecordID,
		ReconciledAt:          line.ReconciledAt,
	}
}

func (d *lineDocument) toModel() (*models.BankStatementLine, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, errors.RepositoryError(errors.CodeQueryFailed, "decode statement amount", err).
			WithContext("statement_id", d.StatementID)
	}

	return &models.BankStatementLine{
		StatementID:           d.StatementID,
		ChurchID:              d.ChurchID,
		Bank:                  d.Bank,
		AccountName:           d.AccountName,
		AvailabilityAccountID: d.AvailabilityAccountID,
		Month:                 d.Month,
		Year:                  d.Year,
		PostedAt:              d.PostedAt,
		Amount:                amount,
		Description:           d.Description,
		ExternalReference:     d.ExternalReference,
		ReconciliationStatus:  models.ReconciliationStatus(d.ReconciliationStatus),
		FinancialRecordID:     d.FinancialRecordID,
		ReconciledAt:          d.ReconciledAt,
	}, nil
}

// MongoStore persists statement lines in MongoDB.
type MongoStore struct {
	collection *mongo.Collection
	logger     logger.Logger
}

// NewMongoStore creates a store over the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection(statementCollection),
		logger:     logger.GetGlobalLogger().WithComponent("statement_store"),
	}
}

// EnsureIndexes creates the unique identity index and the status listing
// index. Safe to call on every startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "church_id", Value: 1},
				{Key: "statement_id", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_church_statement"),
		},
		{
			Keys: bson.D{
				{Key: "church_id", Value: 1},
				{Key: "reconciliation_status", Value: 1},
			},
			Options: options.Index().SetName("church_status"),
		},
		{
			Keys: bson.D{
				{Key: "church_id", Value: 1},
				{Key: "year", Value: 1},
				{Key: "month", Value: 1},
			},
			Options: options.Index().SetName("church_period"),
		},
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return errors.RepositoryError(errors.CodeConnectionFailed, "create statement indexes", err)
	}

	return nil
}

// BulkInsert writes the lines unordered. Duplicate-key failures are the
// idempotency mechanism for re-imports and are swallowed; any other write
// error fails the call.
func (s *MongoStore) BulkInsert(ctx context.Context, lines []*models.BankStatementLine) (int, error) {
	if len(lines) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, len(lines))
	for i, line := range lines {
		if err := line.Validate(); err != nil {
			return 0, errors.ValidationError(errors.CodeMissingField, "statement_line", line.StatementID, err)
		}
		docs[i] = toDocument(line)
	}

	_, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return len(lines), nil
	}

	bulkErr, ok := err.(mongo.BulkWriteException)
	if !ok {
		return 0, errors.RepositoryError(errors.CodeWriteFailed, "insert statement lines", err)
	}

	const duplicateKeyCode = 11000

	duplicates := 0
	for _, writeErr := range bulkErr.WriteErrors {
		if writeErr.Code != duplicateKeyCode {
			return 0, errors.RepositoryError(errors.CodeWriteFailed, "insert statement lines", err)
		}
		duplicates++
	}

	inserted := len(lines) - duplicates
	s.logger.WithFields(logger.Fields{
		"inserted":   inserted,
		"duplicates": duplicates,
	}).Debug("Bulk insert dropped duplicate statement lines")

	return inserted, nil
}

// UpdateStatus transitions one line. RECONCILED sets the financial record
// link and timestamp; any other status unsets both, so the stored document
// can never violate the reconciliation invariant.
func (s *MongoStore) UpdateStatus(ctx context.Context, churchID, statementID string, status models.ReconciliationStatus, financialRecordID string, reconciledAt *time.Time) error {
	if !status.IsValid() {
		return errors.ValidationError(errors.CodeInvalidStatus, "status", status, nil)
	}

	var update bson.M
	if status == models.StatusReconciled {
		if financialRecordID == "" || reconciledAt == nil {
			return errors.ValidationError(errors.CodeMissingField, "financial_record_id", financialRecordID, nil)
		}
		update = bson.M{
			"$set": bson.M{
				"reconciliation_status": status.String(),
				"financial_record_id":   financialRecordID,
				"reconciled_at":         reconciledAt.UTC(),
			},
		}
	} else {
		update = bson.M{
			"$set": bson.M{
				"reconciliation_status": status.String(),
			},
			"$unset": bson.M{
				"financial_record_id": "",
				"reconciled_at":       "",
			},
		}
	}

	filter := bson.M{"church_id": churchID, "statement_id": statementID}
	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.RepositoryError(errors.CodeWriteFailed, "update statement status", err)
	}

	if result.MatchedCount == 0 {
		return errors.StatementNotFoundError(churchID, statementID)
	}

	return nil
}

// One fetches a single line scoped to the tenant.
func (s *MongoStore) One(ctx context.Context, churchID, statementID string) (*models.BankStatementLine, error) {
	filter := bson.M{"church_id": churchID, "statement_id": statementID}

	var doc lineDocument
	if err := s.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.StatementNotFoundError(churchID, statementID)
		}
		return nil, errors.RepositoryError(errors.CodeQueryFailed, "find statement line", err)
	}

	return doc.toModel()
}

// List returns the lines matching the criteria, newest posting date first.
func (s *MongoStore) List(ctx context.Context, criteria ListCriteria) ([]*models.BankStatementLine, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	filter := bson.M{"church_id": criteria.ChurchID}
	if criteria.AvailabilityAccountID != "" {
		filter["availability_account_id"] = criteria.AvailabilityAccountID
	}
	if criteria.Month != 0 {
		filter["month"] = criteria.Month
	}
	if criteria.Year != 0 {
		filter["year"] = criteria.Year
	}
	if criteria.Status != "" {
		filter["reconciliation_status"] = criteria.Status.String()
	}

	opts := options.Find().SetSort(bson.D{{Key: "posted_at", Value: -1}})
	if criteria.Limit > 0 {
		opts.SetLimit(criteria.Limit)
	}
	if criteria.Offset > 0 {
		opts.SetSkip(criteria.Offset)
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.RepositoryError(errors.CodeQueryFailed, "list statement lines", err)
	}
	defer cursor.Close(ctx)

	var lines []*models.BankStatementLine
	for cursor.Next(ctx) {
		var doc lineDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.RepositoryError(errors.CodeQueryFailed, "decode statement line", err)
		}
		line, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	if err := cursor.Err(); err != nil {
		return nil, errors.RepositoryError(errors.CodeQueryFailed, "iterate statement lines", err)
	}

	return lines, nil
}

// CountByStatus aggregates per-status line counts for a tenant's period.
func (s *MongoStore) CountByStatus(ctx context.Context, churchID string, month, year int) (map[models.ReconciliationStatus]int64, error) {
	if churchID == "" {
		return nil, errors.ValidationError(errors.CodeMissingField, "church_id", churchID, nil)
	}

	match := bson.M{"church_id": churchID}
	if month != 0 {
		match["month"] = month
	}
	if year != 0 {
		match["year"] = year
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$reconciliation_status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.RepositoryError(errors.CodeQueryFailed, "count statements by status", err)
	}
	defer cursor.Close(ctx)

	counts := make(map[models.ReconciliationStatus]int64)
	for cursor.Next(ctx) {
		var row struct {
			Status string `bson:"_id"`
			Count  int64  `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, errors.RepositoryError(errors.CodeQueryFailed, "decode status count", err)
		}
		counts[models.ReconciliationStatus(row.Status)] = row.Count
	}

	if err := cursor.Err(); err != nil {
		return nil, errors.RepositoryError(errors.CodeQueryFailed, "iterate status counts", err)
	}

	return counts, nil
}
