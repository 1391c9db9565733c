package jobs

import (
	"context"
	"sync"
	"time"

	"church-finance-service/pkg/errors"
	"church-finance-service/pkg/logger"
)

// Handler processes one import job. A nil error marks the job succeeded; an
// error triggers a retry until the attempt budget runs out.
type Handler func(ctx context.Context, job *ImportJob) (*ImportOutcome, error)

// Publisher enqueues import jobs.
type Publisher interface {
	Publish(ctx context.Context, job *ImportJob) error
}

// Tracker reads job records for polling clients.
type Tracker interface {
	Get(jobID string) (*ImportJob, bool)
}

// Broker is the full queue contract the HTTP layer depends on.
type Broker interface {
	Publisher
	Tracker
}

// Config bounds the queue.
type Config struct {
	Workers      int           `json:"workers" mapstructure:"workers"`
	Capacity     int           `json:"capacity" mapstructure:"capacity"`
	MaxAttempts  int           `json:"max_attempts" mapstructure:"max_attempts"`
	RetryBackoff time.Duration `json:"retry_backoff" mapstructure:"retry_backoff"`
}

// DefaultConfig returns queue defaults sized for a single instance.
func DefaultConfig() *Config {
	return &Config{
		Workers:      2,
		Capacity:     64,
		MaxAttempts:  3,
		RetryBackoff: 2 * time.Second,
	}
}

// Validate checks the configuration bounds.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "workers", c.Workers, nil)
	}
	if c.Capacity < 1 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "capacity", c.Capacity, nil)
	}
	if c.MaxAttempts < 1 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "max_attempts", c.MaxAttempts, nil)
	}
	if c.RetryBackoff < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "retry_backoff", c.RetryBackoff.String(), nil)
	}
	return nil
}

// Queue is an in-memory job queue with a worker pool. Job records survive
// until the process exits; clients poll them by id.
type Queue struct {
	config  *Config
	handler Handler
	logger  logger.Logger

	jobs chan *ImportJob

	mu     sync.RWMutex
	store  map[string]*ImportJob
	closed bool

	wg sync.WaitGroup
}

// NewQueue creates a queue and starts its workers.
func NewQueue(config *Config, handler Handler) (*Queue, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	q := &Queue{
		config:  config,
		handler: handler,
		logger:  logger.GetGlobalLogger().WithComponent("import_queue"),
		jobs:    make(chan *ImportJob, config.Capacity),
		store:   make(map[string]*ImportJob),
	}

	for i := 0; i < config.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}

	return q, nil
}

// Publish validates and enqueues a job. Fails fast when the queue is full so
// the HTTP layer can tell the client to try again later.
func (q *Queue) Publish(ctx context.Context, job *ImportJob) error {
	if err := job.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.DispatchError(errors.CodeQueueClosed, "import_job", nil)
	}

	select {
	case q.jobs <- job:
		q.store[job.ID] = job
		q.logger.WithFields(logger.Fields{
			"job_id":    job.ID,
			"church_id": job.ChurchID,
			"bank":      job.Bank,
		}).Info("Import job queued")
		return nil
	default:
		return errors.DispatchError(errors.CodeDeliveryFailed, "import_job", nil).
			WithContext("job_id", job.ID)
	}
}

// Get returns a snapshot of a job by id.
func (q *Queue) Get(jobID string) (*ImportJob, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	job, exists := q.store[jobID]
	if !exists {
		return nil, false
	}

	clone := *job
	if job.Outcome != nil {
		outcome := *job.Outcome
		clone.Outcome = &outcome
	}
	if job.FinishedAt != nil {
		at := *job.FinishedAt
		clone.FinishedAt = &at
	}
	return &clone, true
}

// Close stops accepting jobs and waits for in-flight work to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) work() {
	defer q.wg.Done()

	for job := range q.jobs {
		q.process(job)
	}
}

// process runs a job with bounded retries and exponential backoff. Parse and
// validation failures are deterministic, so they fail immediately instead of
// burning attempts.
func (q *Queue) process(job *ImportJob) {
	log := q.logger.WithFields(logger.Fields{
		"job_id":    job.ID,
		"church_id": job.ChurchID,
	})

	q.setStatus(job.ID, StatusRunning, nil, "")

	backoff := q.config.RetryBackoff
	var lastErr error

	for attempt := 1; attempt <= q.config.MaxAttempts; attempt++ {
		q.bumpAttempts(job.ID)

		outcome, err := q.handler(context.Background(), job)
		if err == nil {
			q.setStatus(job.ID, StatusSucceeded, outcome, "")
			log.WithField("attempt", attempt).Info("Import job succeeded")
			return
		}

		lastErr = err
		log.WithError(err).WithField("attempt", attempt).Warn("Import job attempt failed")

		if !isRetryable(err) {
			break
		}

		if attempt < q.config.MaxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	q.setStatus(job.ID, StatusFailed, nil, lastErr.Error())
	log.WithError(lastErr).Error("Import job failed")
}

// isRetryable reports whether a failure might pass on a later attempt. Only
// repository and dispatch failures are transient; bad input never heals.
func isRetryable(err error) bool {
	financeErr, ok := errors.AsFinanceError(err)
	if !ok {
		return true
	}

	switch financeErr.Category {
	case errors.CategoryRepository, errors.CategoryDispatch, errors.CategoryInternal:
		return true
	default:
		return false
	}
}

func (q *Queue) setStatus(jobID string, status Status, outcome *ImportOutcome, errMessage string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, exists := q.store[jobID]
	if !exists {
		return
	}

	job.Status = status
	job.Error = errMessage
	if outcome != nil {
		job.Outcome = outcome
	}
	if status == StatusSucceeded || status == StatusFailed {
		now := time.Now().UTC()
		job.FinishedAt = &now
	}
}

func (q *Queue) bumpAttempts(jobID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job, exists := q.store[jobID]; exists {
		job.Attempts++
	}
}
