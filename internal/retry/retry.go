// Package retry provides a retry loop with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 50 * time.Millisecond
	defaultMaxDelay     = 2 * time.Second
)

// Config represents retry configuration.
type Config struct {
	MaxAttempts    int           // Maximum number of attempts, first one included (default: 3)
	InitialBackoff time.Duration // Initial backoff duration (default: 50ms)
	MaxBackoff     time.Duration // Maximum backoff duration (default: 2s)

	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// WithDefaults returns cfg with zero values replaced by defaults.
func (cfg Config) WithDefaults() Config {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialDelay
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxDelay
	}
	return cfg
}

// Do calls fn until it succeeds, returns an error retryable rejects, or
// MaxAttempts is reached. Context cancellation is checked between attempts.
func Do(ctx context.Context, cfg Config, retryable func(error) bool, fn func() error) error {
	cfg = cfg.WithDefaults()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if retryable == nil || !retryable(err) {
			return err
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		backoff := Backoff(attempt, cfg.InitialBackoff, cfg.MaxBackoff)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", cfg.MaxAttempts, lastErr)
}

// Backoff calculates the backoff duration for a given attempt.
// Uses exponential backoff: 2^attempt * initial, capped at max.
func Backoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt > 30 {
		return max
	}
	backoff := time.Duration(1<<uint(attempt)) * initial
	if backoff > max || backoff <= 0 {
		return max
	}
	return backoff
}
