package finrecords

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

const recordCollection = "financial_records"

// recordDocument is the Mongo shape of a financial record. Amounts are
// stored as decimal strings, matching the statement store.
type recordDocument struct {
	RecordID string    `bson:"record_id"`
	ChurchID string    `bson:"church_id"`
	Amount   string    `bson:"amount"`
	Date     time.Time `bson:"date"`
	Status   string    `bson:"status"`
}

func (d *recordDocument) toModel() (*models.FinancialRecord, error) {
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, errors.RepositoryError(errors.CodeQueryFailed, "decode record amount", err).
			WithContext("record_id", d.RecordID)
	}

	return &models.FinancialRecord{
		RecordID: d.RecordID,
		ChurchID: d.ChurchID,
		Amount:   amount,
		Date:     d.Date,
		Status:   models.FinancialRecordStatus(d.Status),
	}, nil
}

// MongoRepository reads financial records from MongoDB.
type MongoRepository struct {
	collection *mongo.Collection
	logger     logger.Logger
}

// NewMongoRepository creates a repository over the given database.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection(recordCollection),
		logger:     logger.GetGlobalLogger().WithComponent("finrecord_repository"),
	}
}

// EnsureIndexes creates the candidate lookup index. Safe to call on every
// startup.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	index := mongo.IndexModel{
		Keys: bson.D{
			{Key: "church_id", Value: 1},
			{Key: "amount", Value: 1},
			{Key: "date", Value: 1},
		},
		Options: options.Index().SetName("church_amount_date"),
	}

	if _, err := r.collection.Indexes().CreateOne(ctx, index); err != nil {
		return errors.RepositoryError(errors.CodeConnectionFailed, "create financial record indexes", err)
	}

	return nil
}

// FindCandidates returns non-reconciled records with the exact amount inside
// the date window.
func (r *MongoRepository) FindCandidates(ctx context.Context, filter CandidateFilter) ([]*models.FinancialRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	query := bson.M{
		"church_id": filter.ChurchID,
		"amount":    filter.Amount.String(),
		"date": bson.M{
			"$gte": filter.DateStart.UTC(),
			"$lte": filter.DateEnd.UTC(),
		},
		"status": bson.M{"$ne": string(models.RecordStatusReconciled)},
	}

	cursor, err := r.collection.Find(ctx, query)
	if err != nil {
		return nil, errors.RepositoryError(errors.CodeQueryFailed, "find match candidates", err)
	}
	defer cursor.Close(ctx)

	var records []*models.FinancialRecord
	for cursor.Next(ctx) {
		var doc recordDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.RepositoryError(errors.CodeQueryFailed, "decode financial record", err)
		}
		record, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := cursor.Err(); err != nil {
		return nil, errors.RepositoryError(errors.CodeQueryFailed, "iterate match candidates", err)
	}

	return records, nil
}

// UpdateStatus sets a record's status. Writing the status the record already
// has is a no-op.
func (r *MongoRepository) UpdateStatus(ctx context.Context, churchID, recordID string, status models.FinancialRecordStatus) error {
	filter := bson.M{"church_id": churchID, "record_id": recordID}
	update := bson.M{"$set": bson.M{"status": string(status)}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.RepositoryError(errors.CodeWriteFailed, "update financial record status", err)
	}

	if result.MatchedCount == 0 {
		return errors.RepositoryError(errors.CodeQueryFailed, "update financial record status", nil).
			WithContext("church_id", churchID).
			WithContext("record_id", recordID)
	}

	return nil
}
