package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/logger"
)

// HealthCheck is a named check.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthCheckResult is the outcome of one check.
type HealthCheckResult struct {
	Name     string
	Err      error
	Duration time.Duration
}

type HealthCheckSettings struct {
	Period       time.Duration
	Delay        time.Duration
	FirstRunTime string // cron expression; overrides Delay when valid
}

// HealthCheckNotifierJob runs the registered checks and logs a summary.
// Failing checks are reported, not treated as a job failure.
type HealthCheckNotifierJob struct {
	*backgroundjobs.JobBase
	checks []HealthCheck
	logger *logger.Logger

	mu   sync.RWMutex
	last []HealthCheckResult
}

func NewHealthCheckNotifierJob(s HealthCheckSettings, calc *backgroundjobs.DelayCalculator, checks []HealthCheck, log *logger.Logger) *HealthCheckNotifierJob {
	if s.Period <= 0 {
		s.Period = DefaultHealthCheckPeriod
	}
	if s.Delay < 0 {
		s.Delay = DefaultHealthCheckDelay
	}
	delay := s.Delay
	if calc != nil {
		delay = calc.GetDelay(s.FirstRunTime, time.Now(), s.Delay)
	}
	return &HealthCheckNotifierJob{
		JobBase: backgroundjobs.NewJobBase(HealthCheckNotifierName, s.Period, delay),
		checks:  checks,
		logger:  log.Component("job").With(logger.Field{Key: "job", Value: HealthCheckNotifierName}),
	}
}

// Apply takes reloaded settings. A new period re-arms the hosted service.
func (j *HealthCheckNotifierJob) Apply(s HealthCheckSettings) {
	j.SetPeriod(s.Period)
}

func (j *HealthCheckNotifierJob) Execute(ctx context.Context) error {
	results := make([]HealthCheckResult, 0, len(j.checks))
	failed := 0
	for _, c := range j.checks {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		err := runCheck(ctx, c)
		results = append(results, HealthCheckResult{Name: c.Name, Err: err, Duration: time.Since(start)})
		if err != nil {
			failed++
			j.logger.WarnCtx(ctx, "health check failed",
				logger.Field{Key: "check", Value: c.Name},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}

	j.mu.Lock()
	j.last = results
	j.mu.Unlock()

	j.logger.InfoCtx(ctx, "health checks finished",
		logger.Field{Key: "checks", Value: len(results)},
		logger.Field{Key: "failed", Value: failed})
	return nil
}

func runCheck(ctx context.Context, c HealthCheck) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in health check %s: %v", c.Name, r)
		}
	}()
	return c.Check(ctx)
}

// LastResults returns the results of the previous run.
func (j *HealthCheckNotifierJob) LastResults() []HealthCheckResult {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]HealthCheckResult(nil), j.last...)
}
