// Package cleanup sweeps expired files out of temporary directories.
package cleanup

import "time"

// Stats holds statistics about a cleanup run.
type Stats struct {
	FilesDeleted int           // Number of files deleted
	DirsRemoved  int           // Number of empty directories removed
	BytesFreed   int64         // Bytes freed
	Errors       int           // Entries that could not be removed
	Duration     time.Duration // Time taken for cleanup
}

// Config holds configuration for cleanup operations.
type Config struct {
	Directories     []string      // Roots to sweep; missing ones are skipped
	MaxAge          time.Duration // Files modified longer ago than this are deleted
	Pattern         string        // Glob matched against file names ("" = all)
	RemoveEmptyDirs bool          // Remove directories left empty, never the roots
}

// Runner performs cleanup sweeps.
type Runner struct {
	config  Config
	stats   Stats
	lastRun time.Time
	now     func() time.Time
}

// NewRunner creates a new cleanup runner.
func NewRunner(config Config) *Runner {
	return &Runner{
		config: config,
		now:    time.Now,
	}
}
