package cleanup

import (
	"os"
	"time"

	"github.com/aatumaykin/cmsjobs/internal/logger"
)

// Run sweeps every configured directory. Failures on single entries are
// logged and counted; the first directory that cannot be listed is returned
// after the remaining ones have been swept.
func (r *Runner) Run(log *logger.Logger) (Stats, error) {
	startTime := time.Now()
	stats := Stats{}
	var firstErr error

	for _, dir := range r.config.Directories {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if log != nil {
				log.Debug("cleanup directory does not exist, skipping",
					logger.Field{Key: "dir", Value: dir})
			}
			continue
		}

		files, err := r.ListFiles(dir)
		if err != nil {
			if log != nil {
				log.Error("failed to list files for cleanup", err,
					logger.Field{Key: "dir", Value: dir})
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for _, f := range files {
			if !r.ShouldCleanup(f) {
				continue
			}
			if err := r.DeleteFile(f.Path); err != nil {
				stats.Errors++
				if log != nil {
					log.Error("failed to delete file", err,
						logger.Field{Key: "path", Value: f.Path})
				}
				continue
			}
			stats.FilesDeleted++
			stats.BytesFreed += f.Size
		}

		if r.config.RemoveEmptyDirs {
			stats.DirsRemoved += r.removeEmptyDirs(dir)
		}
	}

	stats.Duration = time.Since(startTime)
	r.lastRun = time.Now()
	r.stats = stats

	return stats, firstErr
}

// GetStats returns the statistics from the last cleanup run.
func (r *Runner) GetStats() Stats {
	return r.stats
}

// GetLastRun returns the time of the last cleanup run.
func (r *Runner) GetLastRun() time.Time {
	return r.lastRun
}
