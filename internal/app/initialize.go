package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aatumaykin/cmsjobs/internal/adminapi"
	"github.com/aatumaykin/cmsjobs/internal/app/builders"
	"github.com/aatumaykin/cmsjobs/internal/audit"
	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/cacherefresh"
	"github.com/aatumaykin/cmsjobs/internal/config"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/metrics"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
	"github.com/aatumaykin/cmsjobs/internal/runtime"
	"github.com/aatumaykin/cmsjobs/internal/search"
	"github.com/aatumaykin/cmsjobs/internal/workers"
)

// ErrAlreadyStarted is returned by Initialize on a running App.
var ErrAlreadyStarted = errors.New("application already started")

// Initialize builds and starts every component. On error the components
// started so far are left for Shutdown to release.
func (a *App) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return ErrAlreadyStarted
	}
	a.started = true
	a.state.SetLevel(runtime.LevelBoot)

	// 1. Notifications and storage
	a.events = notifications.New(a.logger)
	storage, err := builders.NewStorageBuilder(a.config, a.logger).Build(ctx, a.events)
	if err != nil {
		return err
	}
	a.storage = storage

	// 2. Cluster role and MainDom
	cluster, err := builders.NewClusterBuilder(a.config, a.logger).Build(storage)
	if err != nil {
		return err
	}
	a.cluster = cluster
	if err := a.registerServer(ctx); err != nil {
		return err
	}
	if cluster.Lock != nil {
		if err := cluster.Lock.Start(ctx); err != nil {
			return fmt.Errorf("failed to start main dom lease: %w", err)
		}
	}

	// 3. Metrics
	namespace := a.config.Metrics.Namespace
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.collector = metrics.NewJobCollector(namespace, a.registry)
	a.unsubscribe = append(a.unsubscribe, a.collector.Subscribe(a.events))

	// 4. Background queue
	a.queue = workers.NewTaskQueue(a.config.BackgroundQueue.Capacity, a.logger)
	a.queue.OnResult(a.collector.RecordQueueResult)
	a.collector.RegisterQueueDepth(namespace, a.queue)
	a.queue.Start()

	// 5. Delivery API index
	var index search.Index
	if a.config.DeliveryAPI.Enabled {
		idx, err := builders.NewIndexBuilder(a.config, a.logger).Build(storage, a.queue)
		if err != nil {
			return err
		}
		a.index = idx
		index = idx.Index
		a.unsubscribe = append(a.unsubscribe, idx.Subscribe(a.events))
		a.rebuildIndexIfEmpty(ctx)
	}

	// 6. Audit log
	a.unsubscribe = append(a.unsubscribe, audit.NewSubscriber(storage.Audit, a.logger).Subscribe(a.events))

	// 7. Recurring jobs
	a.jobs = builders.NewJobsBuilder(a.config, a.logger).Build(storage, cluster, index)
	deps := backgroundjobs.Dependencies{
		Runtime: a.state,
		Roles:   cluster.Roles,
		MainDom: cluster.MainDom,
		Events:  a.events,
	}
	a.runner = backgroundjobs.NewRunner(a.jobs.List(), backgroundjobs.NewFactory(deps, a.logger), a.logger)

	a.state.SetLevel(runtime.LevelRun)
	if err := a.runner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job runner: %w", err)
	}

	// 8. Admin API
	if a.config.Admin.Enabled {
		var refresh func(ctx context.Context) error
		if a.index != nil {
			refresh = a.index.PublicAccess.Refresh
		}
		a.admin = adminapi.NewServer(adminapi.Config{
			Listen:               a.config.Admin.Listen,
			TriggerRatePerMinute: a.config.Admin.TriggerRatePerMinute,
			AuthToken:            a.config.Admin.AuthToken,
		}, adminapi.Deps{
			Jobs:                a.runner,
			Gatherer:            a.registry,
			Health:              storage.Conn.PingContext,
			RefreshPublicAccess: refresh,
		}, a.logger)
		a.admin.Start()
	}

	// 9. Config hot reload
	if a.configPath != "" {
		watcher, err := config.NewWatcher(a.configPath, a.logger)
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		watcher.OnReload(a.ApplyConfig)
		watcher.Start()
		a.watcher = watcher
	}

	a.logger.Info("application initialized",
		logger.Field{Key: "identity", Value: cluster.Identity},
		logger.Field{Key: "delivery_api", Value: a.index != nil},
		logger.Field{Key: "admin_api", Value: a.admin != nil})
	return nil
}

// registerServer touches the registration once so an elected role is
// known before the first job tick.
func (a *App) registerServer(ctx context.Context) error {
	c := a.cluster
	if c.Registration == nil {
		return nil
	}
	if err := c.Registration.Touch(ctx, c.Identity, a.config.ServerRegistration.StaleAfter()); err != nil {
		return fmt.Errorf("failed to register server: %w", err)
	}
	if c.Elected != nil {
		role, err := c.Elected.Refresh(ctx)
		if err != nil {
			return fmt.Errorf("failed to elect server role: %w", err)
		}
		a.logger.Info("server role elected", logger.Field{Key: "server_role", Value: role.String()})
	}
	return nil
}

// rebuildIndexIfEmpty queues a full rebuild for a fresh index.
func (a *App) rebuildIndexIfEmpty(ctx context.Context) {
	n, err := a.index.Index.DocCount(ctx)
	if err != nil {
		a.logger.Error("failed to count delivery index documents", err)
		return
	}
	if n > 0 {
		return
	}
	err = a.queue.QueueBackgroundWorkItem(func(ctx context.Context) error {
		return a.index.Indexer.Rebuild(ctx, a.storage.Content)
	})
	if err != nil {
		a.logger.Error("failed to queue delivery index rebuild", err)
	}
}

// ApplyConfig applies a reloaded configuration to the running jobs and
// index settings. Structural settings such as the database path need a
// restart.
func (a *App) ApplyConfig(cfg *config.Config) {
	if a.jobs != nil {
		a.jobs.Apply(cfg)
	}

	if a.index != nil {
		before := a.index.Settings.Get()
		after := builders.SettingsFrom(cfg.DeliveryAPI)
		a.index.Settings.Set(after)
		if before.MemberAuthorizationEnabled != after.MemberAuthorizationEnabled {
			a.logger.Info("member authorization changed, resynchronizing protected content",
				logger.Field{Key: "member_authorization", Value: after.MemberAuthorizationEnabled})
			a.RefreshPublicAccess(context.Background())
		}
	}

	a.logger.Info("configuration applied")
}

// RefreshPublicAccess broadcasts a public access cache refresh, which
// resynchronizes protected documents in the delivery index.
func (a *App) RefreshPublicAccess(ctx context.Context) {
	if err := a.events.Publish(ctx, &cacherefresh.PublicAccessCacheRefresherNotification{}); err != nil {
		a.logger.Error("public access refresh failed", err)
	}
}
