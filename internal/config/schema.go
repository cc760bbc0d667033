// Package config provides configuration loading and validation for cmsjobs.
// It supports TOML configuration files with environment variable expansion,
// default values, validation and hot reload.
//
// Configuration structure:
//   - [logging]: Logging level, format, and output
//   - [runtime]: Server role and instance identity
//   - [database]: SQLite path and retry policy
//   - [main_dom]: MainDom lease settings
//   - [server_registration]: Registration touch interval and staleness
//   - [jobs.*]: Per-job scheduling and settings
//   - [delivery_api]: Delivery API index synchronization
//   - [background_queue]: Background work queue capacity
//   - [admin]: Admin HTTP API
//   - [metrics]: Prometheus namespace
//
// Environment variables:
// Environment variables can be referenced using ${VAR} or ${VAR:default} syntax.
// For example: path = "${CMSJOBS_DB:/var/lib/cmsjobs/cms.db}"
package config

import "time"

// Config represents the main application configuration.
type Config struct {
	Logging            LoggingConfig            `toml:"logging"`
	Runtime            RuntimeConfig            `toml:"runtime"`
	Database           DatabaseConfig           `toml:"database"`
	MainDom            MainDomConfig            `toml:"main_dom"`
	ServerRegistration ServerRegistrationConfig `toml:"server_registration"`
	Jobs               JobsConfig               `toml:"jobs"`
	DeliveryAPI        DeliveryAPIConfig        `toml:"delivery_api"`
	BackgroundQueue    BackgroundQueueConfig    `toml:"background_queue"`
	Admin              AdminConfig              `toml:"admin"`
	Metrics            MetricsConfig            `toml:"metrics"`
}

// LoggingConfig представляет конфигурацию логирования
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// RuntimeConfig представляет конфигурацию роли сервера
type RuntimeConfig struct {
	// auto: роль определяется через server registration (или single, если она выключена)
	ServerRole             string `toml:"server_role"`
	InstanceID             string `toml:"instance_id"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
}

// ShutdownTimeout возвращает таймаут остановки
func (c RuntimeConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Path  string      `toml:"path"`
	Retry RetryConfig `toml:"retry"`
}

// RetryConfig представляет политику повторов для транзиентных ошибок
type RetryConfig struct {
	MaxAttempts      int `toml:"max_attempts"`
	InitialBackoffMS int `toml:"initial_backoff_ms"`
	MaxBackoffMS     int `toml:"max_backoff_ms"`
}

func (c RetryConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMS) * time.Millisecond
}

func (c RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMS) * time.Millisecond
}

// MainDomConfig представляет конфигурацию MainDom lease
type MainDomConfig struct {
	Enabled      bool `toml:"enabled"`
	LeaseSeconds int  `toml:"lease_seconds"`
	RenewSeconds int  `toml:"renew_seconds"`
}

func (c MainDomConfig) Lease() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

func (c MainDomConfig) Renew() time.Duration {
	return time.Duration(c.RenewSeconds) * time.Second
}

// ServerRegistrationConfig представляет конфигурацию регистрации серверов
type ServerRegistrationConfig struct {
	Enabled              bool   `toml:"enabled"`
	Address              string `toml:"address"`
	TouchIntervalSeconds int    `toml:"touch_interval_seconds"`
	StaleAfterSeconds    int    `toml:"stale_after_seconds"`
}

func (c ServerRegistrationConfig) TouchInterval() time.Duration {
	return time.Duration(c.TouchIntervalSeconds) * time.Second
}

func (c ServerRegistrationConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterSeconds) * time.Second
}

// JobsConfig представляет конфигурацию фоновых задач
type JobsConfig struct {
	TempFileCleanup TempFileCleanupJobConfig `toml:"temp_file_cleanup"`
	LogScrubber     LogScrubberJobConfig     `toml:"log_scrubber"`
	HealthCheck     HealthCheckJobConfig     `toml:"health_check"`
}

// JobConfig содержит общие параметры расписания задачи
type JobConfig struct {
	// nil означает включено
	Enabled       *bool `toml:"enabled"`
	PeriodSeconds int   `toml:"period_seconds"`
	DelaySeconds  int   `toml:"delay_seconds"`
}

// IsEnabled returns true unless the job is explicitly disabled.
func (c JobConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c JobConfig) Period() time.Duration {
	return time.Duration(c.PeriodSeconds) * time.Second
}

func (c JobConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}

// TempFileCleanupJobConfig представляет конфигурацию очистки временных файлов
type TempFileCleanupJobConfig struct {
	JobConfig
	Directories []string `toml:"directories"`
	Pattern     string   `toml:"pattern"`
	MaxAgeHours int      `toml:"max_age_hours"`
}

func (c TempFileCleanupJobConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// LogScrubberJobConfig представляет конфигурацию очистки журнала аудита
type LogScrubberJobConfig struct {
	JobConfig
	MaxAgeHours int `toml:"max_age_hours"`
}

func (c LogScrubberJobConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// HealthCheckJobConfig представляет конфигурацию проверок здоровья
type HealthCheckJobConfig struct {
	JobConfig
	// cron-выражение первого запуска, например "0 3 * * *"
	FirstRunTime string `toml:"first_run_time"`
}

// DeliveryAPIConfig представляет конфигурацию индекса Delivery API
type DeliveryAPIConfig struct {
	Enabled             bool `toml:"enabled"`
	MemberAuthorization bool `toml:"member_authorization"`
	// пустой путь: индекс в памяти
	IndexPath              string   `toml:"index_path"`
	DisallowedContentTypes []string `toml:"disallowed_content_types"`
}

// BackgroundQueueConfig представляет конфигурацию очереди фоновых задач
type BackgroundQueueConfig struct {
	Capacity int `toml:"capacity"`
}

// AdminConfig представляет конфигурацию admin API
type AdminConfig struct {
	Enabled              bool   `toml:"enabled"`
	Listen               string `toml:"listen"`
	TriggerRatePerMinute int    `toml:"trigger_rate_per_minute"`
	// если задан, POST-запросы требуют Authorization: Bearer <token>
	AuthToken string `toml:"auth_token"`
}

// MetricsConfig представляет конфигурацию метрик
type MetricsConfig struct {
	Namespace string `toml:"namespace"`
}
