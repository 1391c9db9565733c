package logger

import (
	"sync"
	"time"
)

// ProgressTracker logs periodic progress for long-running operations such as
// matching a large statement import. It logs at most once per interval.
type ProgressTracker struct {
	logger      Logger
	operation   string
	total       int64
	current     int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	mutex       sync.Mutex
}

// NewProgressTracker creates a tracker for the named operation. A total of
// zero disables percentage reporting.
func NewProgressTracker(log Logger, operation string, total int64) *ProgressTracker {
	if log == nil {
		log = GetGlobalLogger()
	}

	return &ProgressTracker{
		logger:      log.WithComponent("progress"),
		operation:   operation,
		total:       total,
		startTime:   time.Now(),
		lastLogTime: time.Now(),
		logInterval: 5 * time.Second,
	}
}

// Increment advances the tracker by one processed item.
func (pt *ProgressTracker) Increment() {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	pt.current++

	if time.Since(pt.lastLogTime) < pt.logInterval {
		return
	}
	pt.lastLogTime = time.Now()

	fields := Fields{
		"operation": pt.operation,
		"processed": pt.current,
		"elapsed":   time.Since(pt.startTime).Round(time.Millisecond),
	}
	if pt.total > 0 {
		fields["total"] = pt.total
		fields["percent"] = float64(pt.current) / float64(pt.total) * 100
	}
	pt.logger.WithFields(fields).Info("Operation in progress")
}

// Done logs the final counts for the operation.
func (pt *ProgressTracker) Done() {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	pt.logger.WithFields(Fields{
		"operation": pt.operation,
		"processed": pt.current,
		"elapsed":   time.Since(pt.startTime).Round(time.Millisecond),
	}).Info("Operation completed")
}
