package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/cmsjobs/internal/logger"
)

// worker drains the queue until it is closed.
func (q *TaskQueue) worker() {
	defer close(q.done)

	for item := range q.items {
		if q.ctx.Err() != nil {
			q.incrementDropped()
			continue
		}
		q.process(item)
	}
}

// process runs a single item with panic recovery and records its result.
func (q *TaskQueue) process(item WorkItem) {
	start := time.Now()
	result := Result{ItemID: item.ID}
	result.Error = q.run(q.ctx, item)
	result.Duration = time.Since(start)

	q.recordResult(result)

	if result.Error != nil {
		q.logger.Error("background work item failed", result.Error,
			logger.Field{Key: "item_id", Value: item.ID},
			logger.Field{Key: "duration_ms", Value: result.Duration.Milliseconds()})
	} else {
		q.logger.Debug("background work item completed",
			logger.Field{Key: "item_id", Value: item.ID},
			logger.Field{Key: "waited_ms", Value: start.Sub(item.QueuedAt).Milliseconds()},
			logger.Field{Key: "duration_ms", Value: result.Duration.Milliseconds()})
	}

	if q.onResult != nil {
		q.onResult(result)
	}
}

func (q *TaskQueue) run(ctx context.Context, item WorkItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in background work item: %v", r)
		}
	}()
	return item.Fn(ctx)
}
