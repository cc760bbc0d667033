// Package workers provides the background task queue used to run work
// outside of notification handlers. Items run one at a time in the order
// they were queued.
package workers

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrQueueFull is returned when the queue is at capacity.
	ErrQueueFull = errors.New("background queue is full")
	// ErrQueueClosed is returned when work is queued after Stop.
	ErrQueueClosed = errors.New("background queue is closed")
	// ErrNilWorkItem is returned when a nil function is queued.
	ErrNilWorkItem = errors.New("work item is nil")
)

// WorkFunc is a unit of background work.
type WorkFunc func(ctx context.Context) error

// WorkItem is a queued unit of work.
type WorkItem struct {
	ID       string
	QueuedAt time.Time
	Fn       WorkFunc
}

// Result represents the outcome of a work item.
type Result struct {
	ItemID   string
	Error    error
	Duration time.Duration
}

// QueueMetrics tracks execution counters for the queue.
type QueueMetrics struct {
	Queued        uint64
	Completed     uint64
	Failed        uint64
	Dropped       uint64
	TotalDuration time.Duration
}

// Constants for queue configuration
const (
	DefaultCapacity = 1000
)
