package cmd

import (
	"context"

	"church-finance-service/cmd/financeserver/config"
	"church-finance-service/internal/events"
	"church-finance-service/internal/finrecords"
	"church-finance-service/internal/matcher"
	"church-finance-service/internal/parsers"
	"church-finance-service/internal/reconciler"
	"church-finance-service/internal/store"
	"church-finance-service/pkg/errors"
	"church-finance-service/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// app holds the wired service graph shared by the serve and import commands.
type app struct {
	config     *config.AppConfig
	client     *mongo.Client
	store      *store.MongoStore
	records    *finrecords.MongoRepository
	service    *reconciler.Service
	dispatcher *events.QueueDispatcher
	logger     logger.Logger
}

// buildApp loads configuration, connects to Mongo and wires the
// reconciliation service.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, err
	}
	logger.SetGlobalLogger(log)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, errors.RepositoryError(errors.CodeConnectionFailed, "connect to mongo", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, errors.RepositoryError(errors.CodeConnectionFailed, "ping mongo", err)
	}

	db := client.Database(cfg.Mongo.Database)

	st := store.NewMongoStore(db)
	if err := st.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	records := finrecords.NewMongoRepository(db)
	if err := records.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	m, err := matcher.NewMatcher(records, &cfg.Matching)
	if err != nil {
		return nil, err
	}

	dispatcher := events.NewQueueDispatcher(cfg.Events.Capacity, cfg.Events.Workers,
		reconciler.RecordStatusHandler(records), auditHandler(log))

	service := reconciler.NewService(parsers.NewDefaultRegistry(), st, m, dispatcher)

	return &app{
		config:     cfg,
		client:     client,
		store:      st,
		records:    records,
		service:    service,
		dispatcher: dispatcher,
		logger:     log,
	}, nil
}

// auditHandler logs every dispatched status event alongside the record
// consumer. Further consumers subscribe here when the surrounding contexts
// grow listeners.
func auditHandler(log logger.Logger) events.Handler {
	audit := log.WithComponent("event_audit")
	return func(event *events.FinancialRecordStatusChanged) {
		audit.WithFields(logger.Fields{
			"event_id":     event.EventID,
			"church_id":    event.ChurchID,
			"record_id":    event.RecordID,
			"statement_id": event.StatementID,
			"new_status":   event.NewStatus,
		}).Info("Financial record status changed")
	}
}

// close drains the dispatcher and disconnects from Mongo.
func (a *app) close(ctx context.Context) {
	a.dispatcher.Close()

	if err := a.client.Disconnect(ctx); err != nil {
		a.logger.WithError(err).Warn("Failed to disconnect from mongo")
	}
}
