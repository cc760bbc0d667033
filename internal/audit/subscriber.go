package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
)

// Subscriber writes an audit entry for every executed or failed tick.
type Subscriber struct {
	store  *Store
	logger *logger.Logger
}

// NewSubscriber creates a subscriber.
func NewSubscriber(store *Store, log *logger.Logger) *Subscriber {
	return &Subscriber{store: store, logger: log.Component("audit")}
}

// Subscribe registers the subscriber and returns a function removing it.
func (s *Subscriber) Subscribe(agg *notifications.Aggregator) func() {
	offExecuted := notifications.On(agg, s.onExecuted)
	offFailed := notifications.On(agg, s.onFailed)
	return func() {
		offExecuted()
		offFailed()
	}
}

func (s *Subscriber) onExecuted(ctx context.Context, n *backgroundjobs.JobExecuted) error {
	return s.record(ctx, n.JobName(), EventExecuted, durationDetail(n.State()))
}

func (s *Subscriber) onFailed(ctx context.Context, n *backgroundjobs.JobFailed) error {
	detail := durationDetail(n.State())
	if n.Err != nil {
		detail = fmt.Sprintf("%s error=%q", detail, n.Err.Error())
	}
	return s.record(ctx, n.JobName(), EventFailed, detail)
}

func (s *Subscriber) record(ctx context.Context, job, event, detail string) error {
	err := s.store.Add(ctx, &Entry{Job: job, Event: event, Detail: detail})
	if err != nil {
		s.logger.Error("failed to write audit entry", err,
			logger.Field{Key: "job", Value: job},
			logger.Field{Key: "event", Value: event})
	}
	return err
}

func durationDetail(state map[string]any) string {
	var parts string
	if id, ok := state[backgroundjobs.StateKeyTickID].(string); ok {
		parts = "tick=" + id
	}
	if started, ok := state[backgroundjobs.StateKeyStartedAt].(time.Time); ok {
		if parts != "" {
			parts += " "
		}
		parts += "duration=" + time.Since(started).Round(time.Millisecond).String()
	}
	return parts
}
