// Package jobs contains the recurring jobs shipped with cmsjobs. Each job
// only knows how to do its work; scheduling, gating and notifications are
// handled by the hosted service wrapping it.
package jobs

import "time"

// Job names as used in config sections, logs and the admin API.
const (
	TempFileCleanupName     = "temp-file-cleanup"
	LogScrubberName         = "log-scrubber"
	TouchServerName         = "touch-server"
	HealthCheckNotifierName = "health-check-notifier"
)

const (
	DefaultTempFileCleanupPeriod = time.Hour
	DefaultTempFileCleanupDelay  = time.Minute
	DefaultTempFileMaxAge        = 24 * time.Hour

	DefaultLogScrubberPeriod = 4 * time.Hour
	DefaultLogScrubberDelay  = 5 * time.Minute
	DefaultLogMaxAge         = 24 * time.Hour

	DefaultTouchServerPeriod = time.Minute
	DefaultTouchServerDelay  = 15 * time.Second
	DefaultStaleServerAfter  = 3 * time.Minute

	DefaultHealthCheckPeriod = 24 * time.Hour
	DefaultHealthCheckDelay  = 3 * time.Minute
)
