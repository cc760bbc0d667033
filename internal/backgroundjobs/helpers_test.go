package backgroundjobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/notifications"
	"github.com/aatumaykin/cmsjobs/internal/runtime"
)

func testLogger() *logger.Logger {
	return logger.Nop()
}

// recorder captures every published notification in order.
type recorder struct {
	mu    sync.Mutex
	items []notifications.Notification
}

func (r *recorder) Handle(_ context.Context, n notifications.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.items))
	for _, n := range r.items {
		out = append(out, n.NotificationName())
	}
	return out
}

func (r *recorder) all() []notifications.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Notification(nil), r.items...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

func newDeps(level runtime.Level, role runtime.ServerRole, mainDom bool) (Dependencies, *recorder) {
	rec := &recorder{}
	agg := notifications.New(testLogger())
	agg.Subscribe(rec)
	return Dependencies{
		Runtime: runtime.NewState(level),
		Roles:   runtime.StaticRoleAccessor{Role: role},
		MainDom: runtime.NewMainDomFlag(mainDom),
		Events:  agg,
	}, rec
}

func runnableDeps() (Dependencies, *recorder) {
	return newDeps(runtime.LevelRun, runtime.RoleSingle, true)
}

// countingJob counts executions and optionally fails or blocks.
type countingJob struct {
	*JobBase
	calls   atomic.Int32
	running atomic.Int32
	maxSeen atomic.Int32
	err     error
	hold    time.Duration
}

func newCountingJob(name string, period, delay time.Duration, roles ...runtime.ServerRole) *countingJob {
	return &countingJob{JobBase: NewJobBase(name, period, delay, roles...)}
}

func (j *countingJob) Execute(ctx context.Context) error {
	n := j.running.Add(1)
	defer j.running.Add(-1)
	for {
		cur := j.maxSeen.Load()
		if n <= cur || j.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	j.calls.Add(1)
	if j.hold > 0 {
		select {
		case <-time.After(j.hold):
		case <-ctx.Done():
		}
	}
	return j.err
}

// stubbornJob ignores cancellation until release is closed.
type stubbornJob struct {
	*JobBase
	release chan struct{}
	calls   atomic.Int32
	running atomic.Int32
	maxSeen atomic.Int32
}

func newStubbornJob(name string, period time.Duration) *stubbornJob {
	return &stubbornJob{JobBase: NewJobBase(name, period, 0), release: make(chan struct{})}
}

func (j *stubbornJob) Execute(context.Context) error {
	n := j.running.Add(1)
	defer j.running.Add(-1)
	if n > j.maxSeen.Load() {
		j.maxSeen.Store(n)
	}
	j.calls.Add(1)
	<-j.release
	return nil
}
