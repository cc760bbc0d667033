package backgroundjobs

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aatumaykin/cmsjobs/internal/logger"
)

// DelayCalculator turns a "first run time" cron expression into the initial
// delay of a job.
type DelayCalculator struct {
	parser cron.Parser
	logger *logger.Logger
}

// NewDelayCalculator creates a calculator for standard 5-field expressions.
func NewDelayCalculator(log *logger.Logger) *DelayCalculator {
	return &DelayCalculator{
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger: log.Component("delay_calculator"),
	}
}

// GetDelay returns the time from now until the next occurrence of
// firstRunTime. An empty expression returns defaultDelay, and so does an
// invalid one after logging a warning.
func (c *DelayCalculator) GetDelay(firstRunTime string, now time.Time, defaultDelay time.Duration) time.Duration {
	expr := strings.TrimSpace(firstRunTime)
	if expr == "" {
		return defaultDelay
	}

	schedule, err := c.parser.Parse(expr)
	if err != nil {
		c.logger.Warn("invalid first run time, using default delay",
			logger.Field{Key: "first_run_time", Value: expr},
			logger.Field{Key: "default_delay", Value: defaultDelay.String()},
			logger.Field{Key: "error", Value: err.Error()})
		return defaultDelay
	}

	next := schedule.Next(now)
	if next.IsZero() {
		return defaultDelay
	}
	return next.Sub(now)
}
