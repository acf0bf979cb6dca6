package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/rewired-gh/seismoalert/internal/logger"
)

// EnvPrefix is prepended to environment variable overrides, e.g.
// SEISMOALERT_TELEGRAM_BOT_TOKEN overrides telegram.bot_token.
const EnvPrefix = "SEISMOALERT"

// Config represents the complete application configuration
type Config struct {
	USGS     USGSConfig     `mapstructure:"usgs"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Email    EmailConfig    `mapstructure:"email"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// USGSConfig holds USGS API configuration
type USGSConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	Limit               int           `mapstructure:"limit"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RetryDelayBase      time.Duration `mapstructure:"retry_delay_base"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
}

// AnalysisConfig holds tunables for the statistical analyses
type AnalysisConfig struct {
	AnomalyWindow    time.Duration `mapstructure:"anomaly_window"`
	AnomalyThreshold float64       `mapstructure:"anomaly_threshold"`
	ClusterRadiusKm  float64       `mapstructure:"cluster_radius_km"`
	ClusterWindow    time.Duration `mapstructure:"cluster_window"`
}

// AlertsConfig holds the built-in alert thresholds and optional rule file
type AlertsConfig struct {
	MagnitudeThreshold float64       `mapstructure:"magnitude_threshold"`
	CountThreshold     int           `mapstructure:"count_threshold"`
	RulesFile          string        `mapstructure:"rules_file"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
}

// MonitorConfig holds monitoring loop configuration
type MonitorConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Lookback     time.Duration `mapstructure:"lookback"`
	MinMagnitude float64       `mapstructure:"min_magnitude"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// WebhookConfig holds generic webhook notification configuration
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EmailConfig holds SMTP notification configuration
type EmailConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPAddr string   `mapstructure:"smtp_addr"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
}

// StorageConfig holds alert history persistence configuration
type StorageConfig struct {
	DBPath    string `mapstructure:"db_path"`
	MaxAlerts int    `mapstructure:"max_alerts"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	}

	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from file and environment variables.
// An empty path yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	v := newViper(path)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Watch loads path and calls onChange with every later valid revision of the
// file. Invalid revisions are logged and ignored.
func Watch(path string, onChange func(*Config)) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config watch requires a file path")
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		next, err := unmarshal(v)
		if err == nil {
			err = next.Validate()
		}
		if err != nil {
			logger.Warn("Ignoring config change in %s: %v", e.Name, err)
			return
		}
		logger.Info("Configuration reloaded from %s", e.Name)
		onChange(next)
	})
	v.WatchConfig()

	return cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// USGS defaults
	v.SetDefault("usgs.base_url", "https://earthquake.usgs.gov/fdsnws/event/1/query")
	v.SetDefault("usgs.timeout", "30s")
	v.SetDefault("usgs.limit", 1000)
	v.SetDefault("usgs.max_retries", 3)
	v.SetDefault("usgs.retry_delay_base", "2s")
	v.SetDefault("usgs.max_idle_conns", 10)
	v.SetDefault("usgs.max_idle_conns_per_host", 2)
	v.SetDefault("usgs.idle_conn_timeout", "90s")

	// Analysis defaults
	v.SetDefault("analysis.anomaly_window", "168h")
	v.SetDefault("analysis.anomaly_threshold", 2.0)
	v.SetDefault("analysis.cluster_radius_km", 50.0)
	v.SetDefault("analysis.cluster_window", "24h")

	// Alert defaults
	v.SetDefault("alerts.magnitude_threshold", 6.0)
	v.SetDefault("alerts.count_threshold", 50)
	v.SetDefault("alerts.rules_file", "")
	v.SetDefault("alerts.cooldown", "6h")

	// Monitor defaults
	v.SetDefault("monitor.poll_interval", "5m")
	v.SetDefault("monitor.lookback", "24h")
	v.SetDefault("monitor.min_magnitude", 4.0)
	v.SetDefault("monitor.metrics_addr", "")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Webhook defaults
	v.SetDefault("webhook.enabled", false)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", "10s")

	// Email defaults
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_addr", "localhost:25")
	v.SetDefault("email.from", "seismoalert@localhost")
	v.SetDefault("email.to", []string{})
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/seismoalert.db")
	v.SetDefault("storage.max_alerts", 1000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate USGS config
	if c.USGS.BaseURL == "" {
		return fmt.Errorf("usgs.base_url is required")
	}
	if c.USGS.Timeout < time.Second {
		return fmt.Errorf("usgs.timeout must be at least 1 second")
	}
	if c.USGS.Limit < 1 || c.USGS.Limit > 20000 {
		return fmt.Errorf("usgs.limit must be between 1 and 20000")
	}
	if c.USGS.MaxRetries < 1 {
		return fmt.Errorf("usgs.max_retries must be at least 1")
	}

	// Validate Analysis config
	if c.Analysis.AnomalyWindow < time.Hour {
		return fmt.Errorf("analysis.anomaly_window must be at least 1 hour")
	}
	if c.Analysis.AnomalyThreshold <= 0 {
		return fmt.Errorf("analysis.anomaly_threshold must be positive")
	}
	if c.Analysis.ClusterRadiusKm <= 0 {
		return fmt.Errorf("analysis.cluster_radius_km must be positive")
	}
	if c.Analysis.ClusterWindow <= 0 {
		return fmt.Errorf("analysis.cluster_window must be positive")
	}

	// Validate Alerts config
	if c.Alerts.CountThreshold < 0 {
		return fmt.Errorf("alerts.count_threshold must not be negative")
	}
	if c.Alerts.Cooldown < 0 {
		return fmt.Errorf("alerts.cooldown must not be negative")
	}

	// Validate Monitor config
	if c.Monitor.PollInterval < 1*time.Minute {
		return fmt.Errorf("monitor.poll_interval must be at least 1 minute")
	}
	if c.Monitor.Lookback < c.Monitor.PollInterval {
		return fmt.Errorf("monitor.lookback must be at least monitor.poll_interval")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Webhook config
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return fmt.Errorf("webhook.url is required when webhook is enabled")
	}

	// Validate Email config
	if c.Email.Enabled {
		if c.Email.SMTPAddr == "" {
			return fmt.Errorf("email.smtp_addr is required when email is enabled")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email.from is required when email is enabled")
		}
		if len(c.Email.To) == 0 {
			return fmt.Errorf("email.to needs at least one recipient when email is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxAlerts < 1 {
		return fmt.Errorf("storage.max_alerts must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
