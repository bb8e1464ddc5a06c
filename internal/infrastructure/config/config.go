package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Log       LogConfig
	API       APIConfig
	Quota     QuotaConfig
	Breaker   BreakerConfig
	Monitor   MonitorConfig
	Alerts    AlertsConfig
	Archive   ArchiveConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	// LockFile is the advisory lock path guarding against overlapping runs
	LockFile string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// APIConfig holds Catalog API connection and credential settings
type APIConfig struct {
	Endpoint            string
	AccessKey           string
	SecretKey           string
	PartnerTag          string
	Marketplace         string
	Region              string
	TimeoutSeconds      int
	ThrottleRetryBaseMs int
	// Resources is the resource path list requested on every GetItems call
	Resources []string
}

// QuotaConfig holds daily request budget settings
type QuotaConfig struct {
	// DailyCeiling is the self-imposed daily request cap, kept below the
	// provider's hard limit
	DailyCeiling int64
	// MinIntervalMs is the minimum spacing between consecutive requests
	MinIntervalMs int
}

// BreakerConfig holds circuit breaker settings
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// MonitorConfig holds scheduler run settings
type MonitorConfig struct {
	// MaxRulesPerRun caps how many due rules a single run processes
	MaxRulesPerRun int
	// DefaultPriority is the tier assigned to lazily created rules
	DefaultPriority string
	// StaleAfter is the age past which unrefreshed items are marked stale
	StaleAfter time.Duration
	// HistoryRetention is how long price and stock history is kept
	HistoryRetention time.Duration
}

// AlertsConfig holds notification channel settings
type AlertsConfig struct {
	// Email (SMTP) channel
	EmailEnabled bool
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string
	EmailTo      []string
	// Generic webhook channel (JSON POST)
	WebhookEnabled bool
	WebhookURL     string
	// Chat webhook channel (Slack-compatible payload)
	ChatEnabled    bool
	ChatWebhookURL string
	TimeoutSeconds int
}

// ArchiveConfig holds raw payload archive (S3-compatible) settings
type ArchiveConfig struct {
	Enabled   bool
	Bucket    string
	Region    string
	Prefix    string
	Endpoint  string // custom endpoint for S3-compatible stores, empty for AWS
	AccessKey string
	SecretKey string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string // OTEL Collector endpoint (e.g., "localhost:4317")
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	ExportInterval    time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CATMON_ prefix (e.g., CATMON_API_SECRET_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads configuration, preferring an explicit config file path
// when one is given
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/catalog-monitor")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("CATMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:     v.GetString("app.name"),
			Env:      v.GetString("app.env"),
			LockFile: v.GetString("app.lock_file"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		API: APIConfig{
			Endpoint:            v.GetString("api.endpoint"),
			AccessKey:           v.GetString("api.access_key"),
			SecretKey:           v.GetString("api.secret_key"),
			PartnerTag:          v.GetString("api.partner_tag"),
			Marketplace:         v.GetString("api.marketplace"),
			Region:              v.GetString("api.region"),
			TimeoutSeconds:      v.GetInt("api.timeout_seconds"),
			ThrottleRetryBaseMs: v.GetInt("api.throttle_retry_base_ms"),
			Resources:           v.GetStringSlice("api.resources"),
		},
		Quota: QuotaConfig{
			DailyCeiling:  v.GetInt64("quota.daily_ceiling"),
			MinIntervalMs: v.GetInt("quota.min_interval_ms"),
		},
		Breaker: BreakerConfig{
			FailureThreshold: v.GetInt("breaker.failure_threshold"),
			Cooldown:         v.GetDuration("breaker.cooldown"),
		},
		Monitor: MonitorConfig{
			MaxRulesPerRun:   v.GetInt("monitor.max_rules_per_run"),
			DefaultPriority:  v.GetString("monitor.default_priority"),
			StaleAfter:       v.GetDuration("monitor.stale_after"),
			HistoryRetention: v.GetDuration("monitor.history_retention"),
		},
		Alerts: AlertsConfig{
			EmailEnabled:   v.GetBool("alerts.email_enabled"),
			SMTPHost:       v.GetString("alerts.smtp_host"),
			SMTPPort:       v.GetInt("alerts.smtp_port"),
			SMTPUser:       v.GetString("alerts.smtp_user"),
			SMTPPassword:   v.GetString("alerts.smtp_password"),
			EmailFrom:      v.GetString("alerts.email_from"),
			EmailTo:        v.GetStringSlice("alerts.email_to"),
			WebhookEnabled: v.GetBool("alerts.webhook_enabled"),
			WebhookURL:     v.GetString("alerts.webhook_url"),
			ChatEnabled:    v.GetBool("alerts.chat_enabled"),
			ChatWebhookURL: v.GetString("alerts.chat_webhook_url"),
			TimeoutSeconds: v.GetInt("alerts.timeout_seconds"),
		},
		Archive: ArchiveConfig{
			Enabled:   v.GetBool("archive.enabled"),
			Bucket:    v.GetString("archive.bucket"),
			Region:    v.GetString("archive.region"),
			Prefix:    v.GetString("archive.prefix"),
			Endpoint:  v.GetString("archive.endpoint"),
			AccessKey: v.GetString("archive.access_key"),
			SecretKey: v.GetString("archive.secret_key"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "catalog-monitor"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.LockFile == "" {
		cfg.App.LockFile = "/tmp/catalog-monitor.lock"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "catalog_monitor"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	// stdout is reserved for the run summary
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.API.Region == "" {
		cfg.API.Region = "us-east-1"
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = 30
	}
	if cfg.API.ThrottleRetryBaseMs == 0 {
		cfg.API.ThrottleRetryBaseMs = 2000
	}
	if len(cfg.API.Resources) == 0 {
		cfg.API.Resources = []string{
			"ItemInfo.Title",
			"ItemInfo.ByLineInfo",
			"ItemInfo.Features",
			"ItemInfo.ProductInfo",
			"Offers.Listings.Price",
			"Offers.Listings.Availability",
			"Images.Primary.Large",
			"Images.Variants.Large",
			"BrowseNodeInfo.SalesRanks",
			"CustomerReviews",
		}
	}
	if cfg.Quota.DailyCeiling == 0 {
		// 80% of the provider's 8640/day cap leaves headroom for manual use
		cfg.Quota.DailyCeiling = 6912
	}
	if cfg.Quota.MinIntervalMs == 0 {
		cfg.Quota.MinIntervalMs = 1100
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 5
	}
	if cfg.Breaker.Cooldown == 0 {
		cfg.Breaker.Cooldown = 10 * time.Minute
	}
	if cfg.Monitor.MaxRulesPerRun == 0 {
		cfg.Monitor.MaxRulesPerRun = 200
	}
	if cfg.Monitor.DefaultPriority == "" {
		cfg.Monitor.DefaultPriority = "normal"
	}
	if cfg.Monitor.StaleAfter == 0 {
		cfg.Monitor.StaleAfter = 7 * 24 * time.Hour
	}
	if cfg.Monitor.HistoryRetention == 0 {
		cfg.Monitor.HistoryRetention = 365 * 24 * time.Hour
	}
	if cfg.Alerts.SMTPPort == 0 {
		cfg.Alerts.SMTPPort = 587
	}
	if cfg.Alerts.TimeoutSeconds == 0 {
		cfg.Alerts.TimeoutSeconds = 10
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = "us-east-1"
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "payloads"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "catalog-monitor"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 15 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Quota.DailyCeiling <= 0 {
		return fmt.Errorf("quota.daily_ceiling must be positive")
	}
	if c.Quota.MinIntervalMs <= 0 {
		return fmt.Errorf("quota.min_interval_ms must be positive")
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failure_threshold must be positive")
	}
	if c.Breaker.Cooldown <= 0 {
		return fmt.Errorf("breaker.cooldown must be positive")
	}

	switch c.Monitor.DefaultPriority {
	case "high", "normal", "low":
	default:
		return fmt.Errorf("monitor.default_priority must be high, normal, or low, got %q", c.Monitor.DefaultPriority)
	}

	if c.Alerts.EmailEnabled {
		if c.Alerts.SMTPHost == "" {
			return fmt.Errorf("alerts.smtp_host is required when the email channel is enabled")
		}
		if c.Alerts.EmailFrom == "" || len(c.Alerts.EmailTo) == 0 {
			return fmt.Errorf("alerts.email_from and alerts.email_to are required when the email channel is enabled")
		}
	}
	if c.Alerts.WebhookEnabled && c.Alerts.WebhookURL == "" {
		return fmt.Errorf("alerts.webhook_url is required when the webhook channel is enabled")
	}
	if c.Alerts.ChatEnabled && c.Alerts.ChatWebhookURL == "" {
		return fmt.Errorf("alerts.chat_webhook_url is required when the chat channel is enabled")
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when the payload archive is enabled")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.API.AccessKey == "" || c.API.SecretKey == "" {
			return fmt.Errorf("api.access_key and api.secret_key are required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
