package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/cleanup"
	"github.com/aatumaykin/cmsjobs/internal/logger"
	"github.com/aatumaykin/cmsjobs/internal/runtime"
)

// TempFileCleanupSettings configures TempFileCleanupJob.
type TempFileCleanupSettings struct {
	Period      time.Duration
	Delay       time.Duration
	Directories []string
	MaxAge      time.Duration
	Pattern     string
}

// TempFileCleanupJob deletes expired files from temporary directories.
// Every server keeps its own temp files, so it runs on all roles.
type TempFileCleanupJob struct {
	*backgroundjobs.JobBase
	runner *cleanup.Runner
	logger *logger.Logger
}

func NewTempFileCleanupJob(s TempFileCleanupSettings, log *logger.Logger) *TempFileCleanupJob {
	if s.Period <= 0 {
		s.Period = DefaultTempFileCleanupPeriod
	}
	if s.Delay < 0 {
		s.Delay = DefaultTempFileCleanupDelay
	}
	if s.MaxAge <= 0 {
		s.MaxAge = DefaultTempFileMaxAge
	}
	return &TempFileCleanupJob{
		JobBase: backgroundjobs.NewJobBase(TempFileCleanupName, s.Period, s.Delay, runtime.AllRoles...),
		runner: cleanup.NewRunner(cleanup.Config{
			Directories:     s.Directories,
			MaxAge:          s.MaxAge,
			Pattern:         s.Pattern,
			RemoveEmptyDirs: true,
		}),
		logger: log.Component("job").With(logger.Field{Key: "job", Value: TempFileCleanupName}),
	}
}

func (j *TempFileCleanupJob) Execute(ctx context.Context) error {
	stats, err := j.runner.Run(j.logger)
	if err != nil {
		return fmt.Errorf("temp file cleanup: %w", err)
	}
	j.logger.InfoCtx(ctx, "temp file cleanup finished",
		logger.Field{Key: "files_deleted", Value: stats.FilesDeleted},
		logger.Field{Key: "dirs_removed", Value: stats.DirsRemoved},
		logger.Field{Key: "bytes_freed", Value: stats.BytesFreed},
		logger.Field{Key: "errors", Value: stats.Errors},
		logger.Field{Key: "duration_ms", Value: stats.Duration.Milliseconds()})
	return nil
}

// Stats returns the statistics of the last run.
func (j *TempFileCleanupJob) Stats() cleanup.Stats {
	return j.runner.GetStats()
}
