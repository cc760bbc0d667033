package backgroundjobs

import (
	"context"
	"errors"
	"sync"

	"github.com/aatumaykin/cmsjobs/internal/logger"
)

var (
	ErrRunnerStarted = errors.New("job runner already started")
	ErrJobNotFound   = errors.New("job not found")
)

// Service is the lifecycle the runner manages for every job.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Factory builds the hosted service of a single job.
type Factory[S Service] func(job RecurringJob) (S, error)

// Entry pairs a job name with its running service.
type Entry[S Service] struct {
	Name    string
	Service S
}

// Runner turns the registered job list into running hosted services.
// Jobs are handed over once at construction; adding a job never requires a
// change here.
type Runner[S Service] struct {
	jobs    []RecurringJob
	factory Factory[S]
	logger  *logger.Logger

	mu      sync.RWMutex
	started bool
	entries []Entry[S]
}

// NewRunner creates a runner for jobs.
func NewRunner[S Service](jobs []RecurringJob, factory Factory[S], log *logger.Logger) *Runner[S] {
	return &Runner[S]{
		jobs:    append([]RecurringJob(nil), jobs...),
		factory: factory,
		logger:  log.Component("job_runner"),
	}
}

// Start creates and starts a hosted service per job. A job that fails to
// build or start is logged and skipped; the others still start.
func (r *Runner[S]) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrRunnerStarted
	}
	r.started = true

	seen := make(map[string]struct{}, len(r.jobs))
	for _, job := range r.jobs {
		name := job.Name()
		if _, dup := seen[name]; dup {
			r.logger.Error("duplicate job name, skipping", errors.New("duplicate job"),
				logger.Field{Key: "job", Value: name})
			continue
		}
		seen[name] = struct{}{}

		svc, err := r.factory(job)
		if err != nil {
			r.logger.Error("failed to create hosted service", err, logger.Field{Key: "job", Value: name})
			continue
		}
		if err := svc.Start(ctx); err != nil {
			r.logger.Error("failed to start job", err, logger.Field{Key: "job", Value: name})
			continue
		}
		r.entries = append(r.entries, Entry[S]{Name: name, Service: svc})
	}

	r.logger.Info("job runner started",
		logger.Field{Key: "registered", Value: len(r.jobs)},
		logger.Field{Key: "running", Value: len(r.entries)})
	return nil
}

// Stop stops every started service in registration order. A failure to
// stop one is logged and the rest are still stopped.
func (r *Runner[S]) Stop(ctx context.Context) {
	r.mu.Lock()
	entries := r.entries
	r.entries = nil
	r.started = false
	r.mu.Unlock()

	for _, e := range entries {
		if err := e.Service.Stop(ctx); err != nil {
			r.logger.Error("failed to stop job", err, logger.Field{Key: "job", Value: e.Name})
		}
	}

	r.logger.Info("job runner stopped", logger.Field{Key: "stopped", Value: len(entries)})
}

// Services returns the running services in registration order.
func (r *Runner[S]) Services() []Entry[S] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry[S](nil), r.entries...)
}

// Service looks up a running service by job name.
func (r *Runner[S]) Service(name string) (S, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Name == name {
			return e.Service, nil
		}
	}
	var zero S
	return zero, ErrJobNotFound
}

// Jobs returns the registered job list.
func (r *Runner[S]) Jobs() []RecurringJob {
	return append([]RecurringJob(nil), r.jobs...)
}
