// Package backgroundjobs runs recurring jobs on their own timers.
//
// Each registered RecurringJob is wrapped in a HostedService that arms a
// timer with the job's Delay and Period, checks the runtime gates on every
// tick and publishes lifecycle notifications around the job body. The Runner
// turns the list of registered jobs into hosted services at startup and
// stops them again on shutdown.
package backgroundjobs

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aatumaykin/cmsjobs/internal/runtime"
)

// RecurringJob is a unit of work executed periodically by a HostedService.
type RecurringJob interface {
	// Name identifies the job in logs, metrics and the admin API.
	Name() string
	// Period is the interval between two ticks.
	Period() time.Duration
	// Delay is the wait before the first tick.
	Delay() time.Duration
	// ServerRoles lists the roles allowed to execute the job.
	ServerRoles() []runtime.ServerRole
	// Execute performs the work of one tick.
	Execute(ctx context.Context) error
}

// PeriodNotifier is implemented by jobs whose period can change at runtime.
type PeriodNotifier interface {
	OnPeriodChanged(fn func(period time.Duration))
}

// DefaultServerRoles are the roles a job runs on unless it says otherwise.
var DefaultServerRoles = []runtime.ServerRole{runtime.RoleSingle, runtime.RoleSchedulingPublisher}

// JobBase carries the scheduling attributes shared by concrete jobs.
// Embed it and implement Execute.
type JobBase struct {
	mu        sync.RWMutex
	name      string
	period    time.Duration
	delay     time.Duration
	roles     []runtime.ServerRole
	listeners []func(time.Duration)
}

// NewJobBase creates a JobBase. Without roles the job gets DefaultServerRoles.
func NewJobBase(name string, period, delay time.Duration, roles ...runtime.ServerRole) *JobBase {
	if len(roles) == 0 {
		roles = DefaultServerRoles
	}
	return &JobBase{
		name:   name,
		period: period,
		delay:  delay,
		roles:  slices.Clone(roles),
	}
}

func (b *JobBase) Name() string {
	return b.name
}

func (b *JobBase) Period() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.period
}

func (b *JobBase) Delay() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.delay
}

func (b *JobBase) ServerRoles() []runtime.ServerRole {
	return slices.Clone(b.roles)
}

// OnPeriodChanged registers fn to be called whenever SetPeriod changes the period.
func (b *JobBase) OnPeriodChanged(fn func(period time.Duration)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// SetPeriod updates the period and raises PeriodChanged. Non-positive or
// unchanged values are ignored.
func (b *JobBase) SetPeriod(period time.Duration) {
	b.mu.Lock()
	if period <= 0 || period == b.period {
		b.mu.Unlock()
		return
	}
	b.period = period
	listeners := slices.Clone(b.listeners)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(period)
	}
}

// SetDelay updates the initial delay used by the next Start.
func (b *JobBase) SetDelay(delay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if delay >= 0 {
		b.delay = delay
	}
}

// JobFunc adapts a function into a RecurringJob. Mostly useful in tests and
// for ad-hoc jobs registered by the application.
type JobFunc struct {
	*JobBase
	fn func(ctx context.Context) error
}

// NewJobFunc creates a RecurringJob that runs fn on every tick.
func NewJobFunc(base *JobBase, fn func(ctx context.Context) error) *JobFunc {
	return &JobFunc{JobBase: base, fn: fn}
}

func (j *JobFunc) Execute(ctx context.Context) error {
	return j.fn(ctx)
}
