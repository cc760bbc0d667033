package builders

import (
	"context"
	"fmt"

	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs/jobs"
	"github.com/aatumaykin/cmsjobs/internal/config"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/search"
)

// Jobs holds the built jobs. Disabled jobs are nil.
type Jobs struct {
	TempFileCleanup *jobs.TempFileCleanupJob
	LogScrubber     *jobs.LogScrubberJob
	TouchServer     *jobs.TouchServerJob
	HealthCheck     *jobs.HealthCheckNotifierJob
}

// List returns the enabled jobs in registration order.
func (j *Jobs) List() []backgroundjobs.RecurringJob {
	var out []backgroundjobs.RecurringJob
	if j.TempFileCleanup != nil {
		out = append(out, j.TempFileCleanup)
	}
	if j.LogScrubber != nil {
		out = append(out, j.LogScrubber)
	}
	if j.TouchServer != nil {
		out = append(out, j.TouchServer)
	}
	if j.HealthCheck != nil {
		out = append(out, j.HealthCheck)
	}
	return out
}

// Apply pushes reloaded settings into the running jobs. Jobs whose period
// changed re-arm their timers.
func (j *Jobs) Apply(cfg *config.Config) {
	if j.LogScrubber != nil {
		j.LogScrubber.Apply(logScrubberSettings(cfg))
	}
	if j.TouchServer != nil {
		j.TouchServer.Apply(touchServerSettings(cfg))
	}
	if j.HealthCheck != nil {
		j.HealthCheck.Apply(healthCheckSettings(cfg))
	}
}

type JobsBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewJobsBuilder(cfg *config.Config, log *logger.Logger) *JobsBuilder {
	return &JobsBuilder{
		config: cfg,
		logger: log,
	}
}

// Build creates the enabled jobs. index may be nil when the delivery API
// is disabled.
func (b *JobsBuilder) Build(storage *Storage, cluster *Cluster, index search.Index) *Jobs {
	cfg := b.config
	out := &Jobs{}

	if tc := cfg.Jobs.TempFileCleanup; tc.IsEnabled() && len(tc.Directories) > 0 {
		out.TempFileCleanup = jobs.NewTempFileCleanupJob(jobs.TempFileCleanupSettings{
			Period:      tc.Period(),
			Delay:       tc.Delay(),
			Directories: tc.Directories,
			MaxAge:      tc.MaxAge(),
			Pattern:     tc.Pattern,
		}, b.logger)
	}

	if cfg.Jobs.LogScrubber.IsEnabled() {
		out.LogScrubber = jobs.NewLogScrubberJob(logScrubberSettings(cfg), storage.Audit, b.logger)
	}

	if cluster.Registration != nil {
		var refresher jobs.RoleRefresher
		if cluster.Elected != nil {
			refresher = cluster.Elected
		}
		out.TouchServer = jobs.NewTouchServerJob(touchServerSettings(cfg), cluster.Identity,
			cluster.Registration, refresher, b.logger)
	}

	if cfg.Jobs.HealthCheck.IsEnabled() {
		checks := []jobs.HealthCheck{
			{Name: "database", Check: storage.Conn.PingContext},
		}
		if index != nil {
			checks = append(checks, jobs.HealthCheck{Name: "delivery-index", Check: func(ctx context.Context) error {
				n, err := index.DocCount(ctx)
				if err != nil {
					return err
				}
				b.logger.Debug("delivery index document count", logger.Field{Key: "docs", Value: n})
				return nil
			}})
		}
		if cluster.Lock != nil {
			lock := cluster.Lock
			checks = append(checks, jobs.HealthCheck{Name: "main-dom", Check: func(ctx context.Context) error {
				if !lock.IsMainDom() {
					return fmt.Errorf("main dom held by another process")
				}
				return nil
			}})
		}
		out.HealthCheck = jobs.NewHealthCheckNotifierJob(healthCheckSettings(cfg),
			backgroundjobs.NewDelayCalculator(b.logger), checks, b.logger)
	}

	return out
}

func logScrubberSettings(cfg *config.Config) jobs.LogScrubberSettings {
	return jobs.LogScrubberSettings{
		Period: cfg.Jobs.LogScrubber.Period(),
		Delay:  cfg.Jobs.LogScrubber.Delay(),
		MaxAge: cfg.Jobs.LogScrubber.MaxAge(),
	}
}

func touchServerSettings(cfg *config.Config) jobs.TouchServerSettings {
	return jobs.TouchServerSettings{
		Period:     cfg.ServerRegistration.TouchInterval(),
		Delay:      jobs.DefaultTouchServerDelay,
		StaleAfter: cfg.ServerRegistration.StaleAfter(),
	}
}

func healthCheckSettings(cfg *config.Config) jobs.HealthCheckSettings {
	return jobs.HealthCheckSettings{
		Period:       cfg.Jobs.HealthCheck.Period(),
		Delay:        cfg.Jobs.HealthCheck.Delay(),
		FirstRunTime: cfg.Jobs.HealthCheck.FirstRunTime,
	}
}
