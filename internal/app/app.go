// Package app wires the cmsjobs components together and owns their
// lifecycle: storage, cluster role, background queue, delivery index sync,
// recurring jobs, the admin API and config hot reload.
package app

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aatumaykin/cmsjobs/internal/adminapi"
	"github.com/aatumaykin/cmsjobs/internal/app/builders"
	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/config"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/metrics"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
	"github.com/aatumaykin/cmsjobs/internal/runtime"
	"github.com/aatumaykin/cmsjobs/internal/workers"
)

// App represents the main application structure.
type App struct {
	config     *config.Config
	configPath string
	logger     *logger.Logger

	state  *runtime.State
	events *notifications.Aggregator

	storage *builders.Storage
	cluster *builders.Cluster
	queue   *workers.TaskQueue
	index   *builders.DeliveryIndex

	jobs   *builders.Jobs
	runner *backgroundjobs.Runner[*backgroundjobs.HostedService]

	registry  *prometheus.Registry
	collector *metrics.JobCollector

	admin   *adminapi.Server
	watcher *config.Watcher

	unsubscribe []func()

	mu      sync.Mutex
	started bool
}

// Option customizes an App.
type Option func(*App)

// WithConfigPath enables hot reload of the given config file.
func WithConfigPath(path string) Option {
	return func(a *App) {
		a.configPath = path
	}
}

// New creates an App. Components are built by Initialize.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) *App {
	a := &App{
		config: cfg,
		logger: log,
		state:  runtime.NewState(runtime.LevelBoot),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run initializes the application and blocks until ctx is cancelled, then
// shuts down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		a.shutdownAfterFailure()
		a.state.SetLevel(runtime.LevelBootFailed)
		return err
	}

	a.logger.Info("application is running",
		logger.Field{Key: "jobs", Value: len(a.runner.Services())},
		logger.Field{Key: "server_role", Value: a.cluster.Roles.CurrentServerRole().String()})

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Runtime.ShutdownTimeout())
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// State returns the runtime state.
func (a *App) State() *runtime.State {
	return a.state
}

// Events returns the notification aggregator.
func (a *App) Events() *notifications.Aggregator {
	return a.events
}

// Runner returns the job runner. Nil before Initialize.
func (a *App) Runner() *backgroundjobs.Runner[*backgroundjobs.HostedService] {
	return a.runner
}

// Storage returns the storage layer. Nil before Initialize.
func (a *App) Storage() *builders.Storage {
	return a.storage
}

// DeliveryIndex returns the delivery index, or nil when the delivery API
// is disabled.
func (a *App) DeliveryIndex() *builders.DeliveryIndex {
	return a.index
}

// Registry returns the metrics registry.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Queue returns the background queue.
func (a *App) Queue() *workers.TaskQueue {
	return a.queue
}
