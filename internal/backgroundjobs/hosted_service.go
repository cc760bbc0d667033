package backgroundjobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
	"github.com/aatumaykin/cmsjobs/internal/runtime"
)

var (
	ErrAlreadyStarted = errors.New("hosted service already started")
	ErrNotStarted     = errors.New("hosted service not started")
	ErrInvalidPeriod  = errors.New("job period must be positive")
)

// State is the lifecycle state of a HostedService.
type State int

const (
	StateCreated State = iota
	StateStarting
	StateIdle
	StateExecuting
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Running reports whether the timer is armed.
func (s State) Running() bool {
	return s == StateIdle || s == StateExecuting
}

// Dependencies are the shared capabilities every hosted service consults.
// Events may be nil, in which case no notifications are published.
type Dependencies struct {
	Runtime runtime.RuntimeState
	Roles   runtime.ServerRoleAccessor
	MainDom runtime.MainDom
	Events  notifications.Publisher
}

// HostedService owns the timer-driven lifecycle of one recurring job.
type HostedService struct {
	job    RecurringJob
	deps   Dependencies
	logger *logger.Logger

	// execMu serializes ticks, timer-driven and manual alike.
	execMu sync.Mutex

	mu          sync.Mutex
	state       State
	period      time.Duration
	lastOutcome Outcome
	lastRun     time.Time
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewHostedService wraps job in a hosted service.
func NewHostedService(job RecurringJob, deps Dependencies, log *logger.Logger) *HostedService {
	s := &HostedService{
		job:    job,
		deps:   deps,
		logger: log.Component("hosted_service").With(logger.Field{Key: "job", Value: job.Name()}),
		state:  StateCreated,
		period: job.Period(),
	}
	if pn, ok := job.(PeriodNotifier); ok {
		pn.OnPeriodChanged(s.changePeriod)
	}
	return s
}

// NewFactory returns a Factory that builds hosted services sharing deps.
func NewFactory(deps Dependencies, log *logger.Logger) Factory[*HostedService] {
	return func(job RecurringJob) (*HostedService, error) {
		if job == nil {
			return nil, errors.New("nil job")
		}
		return NewHostedService(job, deps, log), nil
	}
}

// Job returns the wrapped job.
func (s *HostedService) Job() RecurringJob {
	return s.job
}

// Period returns the effective recurrence interval.
func (s *HostedService) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

// State returns the current lifecycle state.
func (s *HostedService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastOutcome returns the outcome of the most recent tick.
func (s *HostedService) LastOutcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutcome
}

// LastRun returns when the most recent tick started. Zero if it never ticked.
func (s *HostedService) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Start publishes Starting, arms the timer with the job's Delay and Period
// and publishes Started. If an earlier Stop gave up waiting, Start first
// waits for that loop to exit, bounded by ctx.
func (s *HostedService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCreated && s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	period := s.period
	if period <= 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}
	s.state = StateStarting
	prevDone := s.done
	s.mu.Unlock()

	if prevDone != nil {
		select {
		case <-prevDone:
		case <-ctx.Done():
			s.mu.Lock()
			s.state = StateStopped
			s.mu.Unlock()
			return fmt.Errorf("waiting for previous run of job %s to exit: %w", s.job.Name(), ctx.Err())
		}
	}

	starting := &JobStarting{JobNotification: newJobNotification(s.job, nil)}
	starting.State()[StateKeyStartedAt] = time.Now()
	s.publish(ctx, starting)

	delay := s.job.Delay()
	if delay < 0 {
		delay = 0
	}

	// The loop outlives the start context. Stop cancels it.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.state = StateIdle
	s.mu.Unlock()

	go s.loop(loopCtx, delay, done)

	s.logger.Info("recurring job started",
		logger.Field{Key: "period", Value: period.String()},
		logger.Field{Key: "delay", Value: delay.String()})

	started := &JobStarted{JobNotification: newJobNotification(s.job, nil)}
	started.CopyStateFrom(starting)
	s.publish(ctx, started)
	return nil
}

// Stop publishes Stopping, halts the timer, waits for an in-flight tick to
// return and publishes Stopped. The job body only sees a cancelled context;
// it is never interrupted forcibly.
func (s *HostedService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.state.Running() {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopping
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	stopping := &JobStopping{JobNotification: newJobNotification(s.job, nil)}
	s.publish(ctx, stopping)

	cancel()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = fmt.Errorf("waiting for job %s to stop: %w", s.job.Name(), ctx.Err())
	}

	s.mu.Lock()
	s.state = StateStopped
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("recurring job stopped")

	stopped := &JobStopped{JobNotification: newJobNotification(s.job, nil)}
	stopped.CopyStateFrom(stopping)
	s.publish(ctx, stopped)
	return waitErr
}

func (s *HostedService) loop(ctx context.Context, delay time.Duration, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.PerformExecute(ctx)
			if ctx.Err() != nil {
				return
			}
			timer.Reset(s.Period())
		}
	}
}

// changePeriod is the PeriodChanged handler. The armed timer is left alone;
// the new value applies from the next re-arm after a tick.
func (s *HostedService) changePeriod(period time.Duration) {
	if period <= 0 {
		return
	}
	s.mu.Lock()
	s.period = period
	s.mu.Unlock()

	s.logger.Info("job period changed", logger.Field{Key: "period", Value: period.String()})
}

// PerformExecute runs a single tick: Executing, the gates, the job body and
// exactly one of Executed, Ignored or Failed. It is safe to call while the
// timer is armed; ticks of the same job never overlap.
func (s *HostedService) PerformExecute(ctx context.Context) Outcome {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	s.mu.Lock()
	wasIdle := s.state == StateIdle
	if wasIdle {
		s.state = StateExecuting
	}
	s.lastRun = time.Now()
	s.mu.Unlock()

	outcome := s.tick(ctx)

	s.mu.Lock()
	if wasIdle && s.state == StateExecuting {
		s.state = StateIdle
	}
	s.lastOutcome = outcome
	s.mu.Unlock()

	return outcome
}

func (s *HostedService) tick(ctx context.Context) Outcome {
	executing := &JobExecuting{JobNotification: newJobNotification(s.job, nil)}
	executing.State()[StateKeyTickID] = uuid.NewString()
	executing.State()[StateKeyStartedAt] = time.Now()
	s.publish(ctx, executing)

	if reason, ok := s.checkGates(); !ok {
		ignored := &JobIgnored{JobNotification: newJobNotification(s.job, nil), Reason: reason}
		ignored.CopyStateFrom(executing)
		s.publish(ctx, ignored)
		return OutcomeIgnored
	}

	if err := s.execute(ctx); err != nil {
		s.logger.ErrorCtx(ctx, "recurring job failed", err)
		failed := &JobFailed{JobNotification: newJobNotification(s.job, nil), Err: err}
		failed.CopyStateFrom(executing)
		s.publish(ctx, failed)
		return OutcomeFailed
	}

	executed := &JobExecuted{JobNotification: newJobNotification(s.job, nil)}
	executed.CopyStateFrom(executing)
	s.publish(ctx, executed)
	return OutcomeExecuted
}

// checkGates evaluates runtime level, server role and MainDom in that order.
func (s *HostedService) checkGates() (IgnoreReason, bool) {
	if s.deps.Runtime == nil || s.deps.Runtime.Level() != runtime.LevelRun {
		level := runtime.LevelUnknown
		if s.deps.Runtime != nil {
			level = s.deps.Runtime.Level()
		}
		s.logger.Debug("job skipped: runtime level is not run",
			logger.Field{Key: "level", Value: level.String()})
		return ReasonRuntimeLevel, false
	}

	role := runtime.RoleUnknown
	if s.deps.Roles != nil {
		role = s.deps.Roles.CurrentServerRole()
	}
	if !slices.Contains(s.job.ServerRoles(), role) {
		s.logger.Debug("job skipped: server role not allowed",
			logger.Field{Key: "role", Value: role.String()})
		return ReasonServerRole, false
	}

	if s.deps.MainDom == nil || !s.deps.MainDom.IsMainDom() {
		s.logger.Debug("job skipped: not main dom")
		return ReasonNotMainDom, false
	}

	return "", true
}

func (s *HostedService) execute(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %s: %v", s.job.Name(), r)
		}
	}()
	return s.job.Execute(ctx)
}

func (s *HostedService) publish(ctx context.Context, n notifications.Notification) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.Publish(ctx, n); err != nil {
		s.logger.Debug("notification not published",
			logger.Field{Key: "notification", Value: n.NotificationName()},
			logger.Field{Key: "error", Value: err.Error()})
	}
}
