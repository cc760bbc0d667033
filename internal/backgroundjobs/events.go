package backgroundjobs

import (
	"github.com/aatumaykin/cmsjobs/internal/notifications"
)

// Keys written into the state bag of lifecycle notifications.
const (
	StateKeyStartedAt = "started_at"
	StateKeyTickID    = "tick_id"
)

// JobNotification is the common part of every lifecycle notification.
type JobNotification struct {
	notifications.StatefulNotification
	Job RecurringJob
}

func newJobNotification(job RecurringJob, messages *notifications.EventMessages) JobNotification {
	return JobNotification{
		StatefulNotification: notifications.NewStatefulNotification(messages),
		Job:                  job,
	}
}

// JobName returns the name of the job the notification is about.
func (n *JobNotification) JobName() string {
	if n.Job == nil {
		return ""
	}
	return n.Job.Name()
}

// JobStarting is published before a hosted service arms its timer.
type JobStarting struct{ JobNotification }

// JobStarted is published once the timer is armed.
type JobStarted struct{ JobNotification }

// JobStopping is published before the timer is halted.
type JobStopping struct{ JobNotification }

// JobStopped is published after the timer loop has exited.
type JobStopped struct{ JobNotification }

// JobExecuting is published at the start of every tick.
type JobExecuting struct{ JobNotification }

// JobExecuted is published when the job body returned without error.
type JobExecuted struct{ JobNotification }

// JobIgnored is published when a gate prevented the job from running.
type JobIgnored struct {
	JobNotification
	Reason IgnoreReason
}

// JobFailed is published when the job body returned an error or panicked.
type JobFailed struct {
	JobNotification
	Err error
}

func (*JobStarting) NotificationName() string  { return "job.starting" }
func (*JobStarted) NotificationName() string   { return "job.started" }
func (*JobStopping) NotificationName() string  { return "job.stopping" }
func (*JobStopped) NotificationName() string   { return "job.stopped" }
func (*JobExecuting) NotificationName() string { return "job.executing" }
func (*JobExecuted) NotificationName() string  { return "job.executed" }
func (*JobIgnored) NotificationName() string   { return "job.ignored" }
func (*JobFailed) NotificationName() string    { return "job.failed" }

// IgnoreReason tells which gate skipped a tick.
type IgnoreReason string

const (
	ReasonRuntimeLevel IgnoreReason = "runtime_level"
	ReasonServerRole   IgnoreReason = "server_role"
	ReasonNotMainDom   IgnoreReason = "not_main_dom"
)

// Outcome is the result of a single tick.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeExecuted
	OutcomeIgnored
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExecuted:
		return "executed"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeFailed:
		return "failed"
	default:
		return "none"
	}
}
