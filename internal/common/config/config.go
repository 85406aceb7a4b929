// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Planscape     PlanscapeConfig    `mapstructure:"planscape"`
	Polling       PollingConfig      `mapstructure:"polling"`
	Session       SessionConfig      `mapstructure:"session"`
	Form          FormConfig         `mapstructure:"form"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Catalog       CatalogConfig      `mapstructure:"catalog"`
	Export        ExportConfig       `mapstructure:"export"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// PlanscapeConfig points at the remote scenario API.
type PlanscapeConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIToken   string `mapstructure:"api_token"`
	Timeout    int    `mapstructure:"timeout"`     // milliseconds
	MaxRetries int    `mapstructure:"max_retries"` // for idempotent reads only
	RetryDelay int    `mapstructure:"retry_delay"` // milliseconds
}

// PollingConfig holds the status-fetch cadence.
type PollingConfig struct {
	Interval     int `mapstructure:"interval"`      // milliseconds
	FetchTimeout int `mapstructure:"fetch_timeout"` // milliseconds
}

// SessionConfig selects the plan-state backend and the initial plan context.
type SessionConfig struct {
	PlanID     string `mapstructure:"plan_id"`
	ScenarioID string `mapstructure:"scenario_id"`
	Store      string `mapstructure:"store"` // "memory" or "postgres"
}

// FormConfig carries catalog data the form needs but the API does not supply.
type FormConfig struct {
	ExcludedAreas        []string `mapstructure:"excluded_areas"`
	DefaultEstimatedCost string   `mapstructure:"default_estimated_cost"`
	DefaultStandSize     string   `mapstructure:"default_stand_size"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CatalogConfig controls caching of the treatment-goal and conditions catalogs.
type CatalogConfig struct {
	CacheTTL   int    `mapstructure:"cache_ttl"` // milliseconds
	KeyPrefix  string `mapstructure:"key_prefix"`
	SchemaPath string `mapstructure:"schema_path"`
}

// ExportConfig holds settings for the CSV/zip download.
type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds the prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// NotificationConfig holds settings for terminal-outcome notifications.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}
