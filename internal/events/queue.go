package events

import (
	"sync"

	"church-finance-service/pkg/errors"
	"church-finance-service/pkg/logger"
)

// QueueDispatcher delivers events through a buffered channel drained by a
// worker pool. A full queue drops the event with a warning rather than block
// the reconciliation path.
type QueueDispatcher struct {
	queue    chan *FinancialRecordStatusChanged
	handlers []Handler
	logger   logger.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueueDispatcher creates a dispatcher with the given queue capacity and
// worker count and starts the workers.
func NewQueueDispatcher(capacity, workers int, handlers ...Handler) *QueueDispatcher {
	if capacity <= 0 {
		capacity = 256
	}
	if workers <= 0 {
		workers = 1
	}

	d := &QueueDispatcher{
		queue:    make(chan *FinancialRecordStatusChanged, capacity),
		handlers: handlers,
		logger:   logger.GetGlobalLogger().WithComponent("event_dispatcher"),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}

	return d
}

func (d *QueueDispatcher) work() {
	defer d.wg.Done()

	for event := range d.queue {
		for _, handler := range d.handlers {
			d.deliver(handler, event)
		}
	}
}

// deliver runs one handler, containing panics so a broken consumer cannot
// take down the worker.
func (d *QueueDispatcher) deliver(handler Handler, event *FinancialRecordStatusChanged) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logger.Fields{
				"event_id":   event.EventID,
				"event_type": event.Type,
				"panic":      r,
			}).Error("Event handler panicked")
		}
	}()

	handler(event)
}

// Dispatch queues the event for delivery. Returns an error only when the
// dispatcher is closed or the queue is full; callers log and move on.
func (d *QueueDispatcher) Dispatch(event *FinancialRecordStatusChanged) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.DispatchError(errors.CodeQueueClosed, event.Type, nil)
	}

	select {
	case d.queue <- event:
		return nil
	default:
		d.logger.WithFields(logger.Fields{
			"event_id":   event.EventID,
			"event_type": event.Type,
		}).Warn("Event queue full, dropping event")
		return errors.DispatchError(errors.CodeDeliveryFailed, event.Type, nil)
	}
}

// Close stops accepting events and waits for the workers to drain the queue.
func (d *QueueDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}
