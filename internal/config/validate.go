package config

import (
	"fmt"
	"net"
)

func (c RetryConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("database.retry.max_attempts must be >= 1")
	}
	if c.InitialBackoffMS < 0 || c.MaxBackoffMS < 0 {
		return fmt.Errorf("database.retry backoff values must be >= 0")
	}
	if c.MaxBackoffMS < c.InitialBackoffMS {
		return fmt.Errorf("database.retry.max_backoff_ms must be >= initial_backoff_ms (got %d < %d)", c.MaxBackoffMS, c.InitialBackoffMS)
	}
	return nil
}

func (c MainDomConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.LeaseSeconds < 1 {
		return fmt.Errorf("main_dom.lease_seconds must be >= 1")
	}
	if c.RenewSeconds < 1 || c.RenewSeconds >= c.LeaseSeconds {
		return fmt.Errorf("main_dom.renew_seconds must be between 1 and lease_seconds-1 (got %d)", c.RenewSeconds)
	}
	return nil
}

func (c ServerRegistrationConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.TouchIntervalSeconds < 1 {
		return fmt.Errorf("server_registration.touch_interval_seconds must be >= 1")
	}
	if c.StaleAfterSeconds <= c.TouchIntervalSeconds {
		return fmt.Errorf("server_registration.stale_after_seconds must be greater than touch_interval_seconds (got %d <= %d)",
			c.StaleAfterSeconds, c.TouchIntervalSeconds)
	}
	return nil
}

func (c AdminConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("admin.listen is invalid: %w", err)
	}
	if c.TriggerRatePerMinute < 1 {
		return fmt.Errorf("admin.trigger_rate_per_minute must be >= 1")
	}
	if c.AuthToken != "" && len(c.AuthToken) < 16 {
		return invalidSecret("admin.auth_token", "is too short (minimum 16 characters)", c.AuthToken)
	}
	return nil
}

func (c JobConfig) validate(section string) []error {
	if !c.IsEnabled() {
		return nil
	}
	var errs []error
	if c.PeriodSeconds < 1 {
		errs = append(errs, fmt.Errorf("%s.period_seconds must be >= 1", section))
	}
	if c.DelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("%s.delay_seconds must be >= 0", section))
	}
	return errs
}
