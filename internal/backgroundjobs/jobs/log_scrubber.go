package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/logger"
)

// Pruner deletes audit entries older than a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type LogScrubberSettings struct {
	Period time.Duration
	Delay  time.Duration
	MaxAge time.Duration
}

// LogScrubberJob prunes the audit log.
type LogScrubberJob struct {
	*backgroundjobs.JobBase
	pruner Pruner
	maxAge atomic.Int64
	logger *logger.Logger
	now    func() time.Time
}

func NewLogScrubberJob(s LogScrubberSettings, pruner Pruner, log *logger.Logger) *LogScrubberJob {
	if s.Period <= 0 {
		s.Period = DefaultLogScrubberPeriod
	}
	if s.Delay < 0 {
		s.Delay = DefaultLogScrubberDelay
	}
	j := &LogScrubberJob{
		JobBase: backgroundjobs.NewJobBase(LogScrubberName, s.Period, s.Delay),
		pruner:  pruner,
		logger:  log.Component("job").With(logger.Field{Key: "job", Value: LogScrubberName}),
		now:     time.Now,
	}
	j.setMaxAge(s.MaxAge)
	return j
}

// Apply takes reloaded settings. A new period re-arms the hosted service.
func (j *LogScrubberJob) Apply(s LogScrubberSettings) {
	j.setMaxAge(s.MaxAge)
	j.SetPeriod(s.Period)
}

func (j *LogScrubberJob) setMaxAge(d time.Duration) {
	if d <= 0 {
		d = DefaultLogMaxAge
	}
	j.maxAge.Store(int64(d))
}

func (j *LogScrubberJob) Execute(ctx context.Context) error {
	cutoff := j.now().Add(-time.Duration(j.maxAge.Load()))
	n, err := j.pruner.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune audit log: %w", err)
	}
	j.logger.InfoCtx(ctx, "audit log scrubbed",
		logger.Field{Key: "deleted", Value: n},
		logger.Field{Key: "cutoff", Value: cutoff.Format(time.RFC3339)})
	return nil
}
