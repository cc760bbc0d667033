package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
)

// Load загружает конфигурацию из TOML файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse разбирает TOML, применяет значения по умолчанию и переменные окружения
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := expandEnvVars(&cfg); err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	return &cfg, nil
}

var validServerRoles = map[string]bool{
	"auto":                 true,
	"single":               true,
	"scheduling_publisher": true,
	"subscriber":           true,
}

// Validate проверяет валидность конфигурации
func (c *Config) Validate() []error {
	var errors []error

	// Проверка logging config
	if c.Logging.Level == "" {
		errors = append(errors, fmt.Errorf("logging.level is required"))
	} else {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
		}
	}

	if c.Logging.Format == "" {
		errors = append(errors, fmt.Errorf("logging.format is required"))
	} else {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
		}
	}

	if c.Logging.Output == "" {
		errors = append(errors, fmt.Errorf("logging.output is required"))
	}

	// Проверка роли сервера
	if !validServerRoles[strings.ToLower(c.Runtime.ServerRole)] {
		errors = append(errors, fmt.Errorf("invalid runtime.server_role: %s (expected: auto, single, scheduling_publisher, subscriber)", c.Runtime.ServerRole))
	}

	// Проверка базы данных
	if c.Database.Path == "" {
		errors = append(errors, fmt.Errorf("database.path is required"))
	} else if c.Database.Path != ":memory:" {
		if err := validatePath(c.Database.Path, "database.path"); err != nil {
			errors = append(errors, err)
		}
	}
	if err := c.Database.Retry.Validate(); err != nil {
		errors = append(errors, err)
	}

	if err := c.MainDom.Validate(); err != nil {
		errors = append(errors, err)
	}
	if err := c.ServerRegistration.Validate(); err != nil {
		errors = append(errors, err)
	}

	// Проверка задач
	errors = append(errors, c.Jobs.TempFileCleanup.JobConfig.validate("jobs.temp_file_cleanup")...)
	errors = append(errors, c.Jobs.LogScrubber.JobConfig.validate("jobs.log_scrubber")...)
	errors = append(errors, c.Jobs.HealthCheck.JobConfig.validate("jobs.health_check")...)
	for _, dir := range c.Jobs.TempFileCleanup.Directories {
		if err := validatePath(dir, "jobs.temp_file_cleanup.directories"); err != nil {
			errors = append(errors, err)
		}
	}
	if c.Jobs.TempFileCleanup.Pattern != "" {
		if _, err := filepath.Match(c.Jobs.TempFileCleanup.Pattern, ""); err != nil {
			errors = append(errors, fmt.Errorf("invalid jobs.temp_file_cleanup.pattern: %w", err))
		}
	}
	if expr := c.Jobs.HealthCheck.FirstRunTime; expr != "" {
		if _, err := cron.ParseStandard(expr); err != nil {
			errors = append(errors, fmt.Errorf("invalid jobs.health_check.first_run_time %q: %w", expr, err))
		}
	}

	if c.BackgroundQueue.Capacity < 1 {
		errors = append(errors, fmt.Errorf("background_queue.capacity must be >= 1"))
	}

	if err := c.Admin.Validate(); err != nil {
		errors = append(errors, err)
	}

	return errors
}

func validatePath(path, fieldName string) error {
	if path == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	if strings.HasPrefix(path, "~") {
		return nil
	}

	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
	}

	return nil
}

// applyDefaults применяет значения по умолчанию
func applyDefaults(c *Config) {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Runtime.ServerRole == "" {
		c.Runtime.ServerRole = "auto"
	}
	if c.Runtime.ShutdownTimeoutSeconds == 0 {
		c.Runtime.ShutdownTimeoutSeconds = 30
	}

	if c.Database.Path == "" {
		c.Database.Path = "~/.cmsjobs/cms.db"
	}
	if c.Database.Retry.MaxAttempts == 0 {
		c.Database.Retry.MaxAttempts = 5
	}
	if c.Database.Retry.InitialBackoffMS == 0 {
		c.Database.Retry.InitialBackoffMS = 50
	}
	if c.Database.Retry.MaxBackoffMS == 0 {
		c.Database.Retry.MaxBackoffMS = 2000
	}

	if c.MainDom.LeaseSeconds == 0 {
		c.MainDom.LeaseSeconds = 30
	}
	if c.MainDom.RenewSeconds == 0 {
		c.MainDom.RenewSeconds = 10
	}

	if c.ServerRegistration.TouchIntervalSeconds == 0 {
		c.ServerRegistration.TouchIntervalSeconds = 60
	}
	if c.ServerRegistration.StaleAfterSeconds == 0 {
		c.ServerRegistration.StaleAfterSeconds = 180
	}

	applyJobDefaults(&c.Jobs.TempFileCleanup.JobConfig, 3600, 60)
	if c.Jobs.TempFileCleanup.MaxAgeHours == 0 {
		c.Jobs.TempFileCleanup.MaxAgeHours = 24
	}
	applyJobDefaults(&c.Jobs.LogScrubber.JobConfig, 4*3600, 5*60)
	if c.Jobs.LogScrubber.MaxAgeHours == 0 {
		c.Jobs.LogScrubber.MaxAgeHours = 24
	}
	applyJobDefaults(&c.Jobs.HealthCheck.JobConfig, 24*3600, 3*60)

	if c.BackgroundQueue.Capacity == 0 {
		c.BackgroundQueue.Capacity = 1000
	}

	if c.Admin.Listen == "" {
		c.Admin.Listen = "127.0.0.1:8089"
	}
	if c.Admin.TriggerRatePerMinute == 0 {
		c.Admin.TriggerRatePerMinute = 6
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "cmsjobs"
	}
}

func applyJobDefaults(j *JobConfig, periodSeconds, delaySeconds int) {
	if j.PeriodSeconds == 0 {
		j.PeriodSeconds = periodSeconds
	}
	if j.DelaySeconds == 0 {
		j.DelaySeconds = delaySeconds
	}
}

// expandEnvVars расширяет переменные окружения в конфигурации
func expandEnvVars(c *Config) error {
	// Database path
	if strings.HasPrefix(c.Database.Path, "${") {
		c.Database.Path = expandEnv(c.Database.Path)
	}
	c.Database.Path = expandHome(c.Database.Path)

	// Instance id
	if strings.HasPrefix(c.Runtime.InstanceID, "${") {
		c.Runtime.InstanceID = expandEnv(c.Runtime.InstanceID)
	}

	// Admin token
	if strings.HasPrefix(c.Admin.AuthToken, "${") {
		c.Admin.AuthToken = expandEnv(c.Admin.AuthToken)
	}

	// Index path
	if strings.HasPrefix(c.DeliveryAPI.IndexPath, "${") {
		c.DeliveryAPI.IndexPath = expandEnv(c.DeliveryAPI.IndexPath)
	}
	c.DeliveryAPI.IndexPath = expandHome(c.DeliveryAPI.IndexPath)

	// Temp directories
	for i, dir := range c.Jobs.TempFileCleanup.Directories {
		if strings.HasPrefix(dir, "${") {
			dir = expandEnv(dir)
		}
		c.Jobs.TempFileCleanup.Directories[i] = expandHome(dir)
	}

	return nil
}

// expandEnv расширяет переменную окружения формата ${VAR:default}
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	rest := s[end+1:]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		key := parts[0]
		defaultVal := parts[1]
		if val := os.Getenv(key); val != "" {
			return val + rest
		}
		return defaultVal + rest
	}

	// Без значения по умолчанию
	return os.Getenv(content) + rest
}

// expandHome расширяет ~ в пути
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
