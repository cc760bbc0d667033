package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/runtime"
)

// Toucher refreshes a server registration.
type Toucher interface {
	Touch(ctx context.Context, identity string, staleAfter time.Duration) error
}

// RoleRefresher recomputes this server's role after a touch.
type RoleRefresher interface {
	Refresh(ctx context.Context) (runtime.ServerRole, error)
}

type TouchServerSettings struct {
	Period     time.Duration
	Delay      time.Duration
	StaleAfter time.Duration
}

// TouchServerJob keeps this instance registered and re-elects the
// scheduling server. It runs on every role, including unknown, because
// registering is how a server gets a role in the first place.
type TouchServerJob struct {
	*backgroundjobs.JobBase
	identity   string
	toucher    Toucher
	roles      RoleRefresher
	staleAfter atomic.Int64
	logger     *logger.Logger
}

func NewTouchServerJob(s TouchServerSettings, identity string, toucher Toucher, roles RoleRefresher, log *logger.Logger) *TouchServerJob {
	if s.Period <= 0 {
		s.Period = DefaultTouchServerPeriod
	}
	if s.Delay < 0 {
		s.Delay = DefaultTouchServerDelay
	}
	j := &TouchServerJob{
		JobBase:  backgroundjobs.NewJobBase(TouchServerName, s.Period, s.Delay, runtime.AllRoles...),
		identity: identity,
		toucher:  toucher,
		roles:    roles,
		logger:   log.Component("job").With(logger.Field{Key: "job", Value: TouchServerName}),
	}
	j.setStaleAfter(s.StaleAfter)
	return j
}

// Apply takes reloaded settings. A new period re-arms the hosted service.
func (j *TouchServerJob) Apply(s TouchServerSettings) {
	j.setStaleAfter(s.StaleAfter)
	j.SetPeriod(s.Period)
}

func (j *TouchServerJob) setStaleAfter(d time.Duration) {
	if d <= 0 {
		d = DefaultStaleServerAfter
	}
	j.staleAfter.Store(int64(d))
}

// StaleAfter returns the current staleness threshold.
func (j *TouchServerJob) StaleAfter() time.Duration {
	return time.Duration(j.staleAfter.Load())
}

func (j *TouchServerJob) Execute(ctx context.Context) error {
	if err := j.toucher.Touch(ctx, j.identity, j.StaleAfter()); err != nil {
		return fmt.Errorf("touch server %s: %w", j.identity, err)
	}
	if j.roles == nil {
		return nil
	}
	role, err := j.roles.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh server role: %w", err)
	}
	j.logger.DebugCtx(ctx, "server touched",
		logger.Field{Key: "identity", Value: j.identity},
		logger.Field{Key: "role", Value: role.String()})
	return nil
}
