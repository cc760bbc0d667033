package workers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aatumaykin/cmsjobs/internal/logger"
)

// TaskQueue is a bounded FIFO queue drained by a single worker goroutine.
type TaskQueue struct {
	items  chan WorkItem
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	logger *logger.Logger

	// stateMu guards started/closed and the send side of items.
	stateMu sync.RWMutex
	started bool
	closed  bool

	metricsMu sync.RWMutex
	metrics   QueueMetrics

	onResult func(Result)
}

// NewTaskQueue creates a queue holding at most capacity pending items.
func NewTaskQueue(capacity int, log *logger.Logger) *TaskQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskQueue{
		items:  make(chan WorkItem, capacity),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: log.Component("background_queue"),
	}
}

// OnResult registers a callback invoked after every item finishes.
// It must be set before Start.
func (q *TaskQueue) OnResult(fn func(Result)) {
	q.onResult = fn
}

// Capacity returns the maximum number of pending items.
func (q *TaskQueue) Capacity() int {
	return cap(q.items)
}

// Start launches the worker. Calling Start more than once, or after Stop,
// has no effect.
func (q *TaskQueue) Start() {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true

	q.logger.Info("starting background queue",
		logger.Field{Key: "capacity", Value: cap(q.items)})

	go q.worker()
}

// QueueBackgroundWorkItem adds fn to the queue. It never blocks: a full
// queue returns ErrQueueFull and the item is counted as dropped.
func (q *TaskQueue) QueueBackgroundWorkItem(fn func(ctx context.Context) error) error {
	if fn == nil {
		return ErrNilWorkItem
	}

	q.stateMu.RLock()
	defer q.stateMu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	item := WorkItem{ID: uuid.NewString(), QueuedAt: time.Now(), Fn: fn}
	select {
	case q.items <- item:
		q.incrementQueued()
		q.logger.Debug("work item queued",
			logger.Field{Key: "item_id", Value: item.ID},
			logger.Field{Key: "depth", Value: len(q.items)})
		return nil
	default:
		q.incrementDropped()
		q.logger.Warn("background queue full, work item dropped",
			logger.Field{Key: "item_id", Value: item.ID},
			logger.Field{Key: "capacity", Value: cap(q.items)})
		return ErrQueueFull
	}
}

// Stop closes the queue for new items and waits for the worker to drain
// what is already queued. If ctx expires first, the running item's context
// is cancelled, remaining items are dropped and ctx.Err() is returned.
func (q *TaskQueue) Stop(ctx context.Context) error {
	q.stateMu.Lock()
	if q.closed {
		q.stateMu.Unlock()
		return nil
	}
	q.closed = true
	started := q.started
	close(q.items)
	q.stateMu.Unlock()

	if !started {
		for range q.items {
			q.incrementDropped()
		}
		q.cancel()
		return nil
	}

	var err error
	select {
	case <-q.done:
	case <-ctx.Done():
		err = ctx.Err()
		q.cancel()
	}
	q.cancel()

	m := q.Metrics()
	q.logger.Info("background queue stopped",
		logger.Field{Key: "queued", Value: m.Queued},
		logger.Field{Key: "completed", Value: m.Completed},
		logger.Field{Key: "failed", Value: m.Failed},
		logger.Field{Key: "dropped", Value: m.Dropped})

	return err
}
