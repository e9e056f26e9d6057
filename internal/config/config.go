// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Blob storage backends.
const (
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Browser BrowserConfig `mapstructure:"browser"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
	Sweeper SweeperConfig `mapstructure:"sweeper"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// WorkerConfig governs the capture worker pool.
type WorkerConfig struct {
	Concurrency  int `mapstructure:"concurrency"`
	LeaseSeconds int `mapstructure:"lease_seconds"`
	// DomainRPS caps device captures started per second against one
	// website domain. Zero disables pacing.
	DomainRPS   float64 `mapstructure:"domain_rps"`
	DomainBurst int     `mapstructure:"domain_burst"`
}

// QueueConfig sizes the in-memory work queue.
type QueueConfig struct {
	Depth int `mapstructure:"depth"`
}

// BrowserConfig configures the headless Chrome executor.
type BrowserConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	UserAgent             string `mapstructure:"user_agent"`
	NavTimeoutSeconds     int    `mapstructure:"nav_timeout_seconds"`
	DynamicTimeoutSeconds int    `mapstructure:"dynamic_timeout_seconds"`
	DeviceTimeoutSeconds  int    `mapstructure:"device_timeout_seconds"`
	IdleWindowMs          int    `mapstructure:"idle_window_ms"`
	ThumbnailSize         int    `mapstructure:"thumbnail_size"`
	ExecPath              string `mapstructure:"exec_path"`
	NoSandbox             bool   `mapstructure:"no_sandbox"`
}

// StorageConfig selects and configures the blob store for artifacts.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database. An empty DSN keeps
// records in memory.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

// PubSubConfig holds metadata for publish-subscribe notifications. An empty
// topic disables job events.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SweeperConfig controls stuck-job reconciliation.
type SweeperConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	IntervalSeconds     int  `mapstructure:"interval_seconds"`
	PendingGraceSeconds int  `mapstructure:"pending_grace_seconds"`
	BatchSize           int  `mapstructure:"batch_size"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBCAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.lease_seconds", 300)
	v.SetDefault("worker.domain_rps", 0)
	v.SetDefault("worker.domain_burst", 1)
	v.SetDefault("queue.depth", 64)
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.nav_timeout_seconds", 15)
	v.SetDefault("browser.dynamic_timeout_seconds", 30)
	v.SetDefault("browser.device_timeout_seconds", 90)
	v.SetDefault("browser.idle_window_ms", 500)
	v.SetDefault("browser.thumbnail_size", 300)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("storage.backend", StorageLocal)
	v.SetDefault("storage.base_dir", "data/captures")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("db.auto_migrate", false)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval_seconds", 60)
	v.SetDefault("sweeper.pending_grace_seconds", 120)
	v.SetDefault("sweeper.batch_size", 100)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Worker.DomainRPS < 0 {
		return fmt.Errorf("worker.domain_rps must be >= 0")
	}
	if c.Queue.Depth <= 0 {
		return fmt.Errorf("queue.depth must be > 0")
	}
	if c.Browser.NavTimeoutSeconds <= 0 || c.Browser.DynamicTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds and browser.dynamic_timeout_seconds must be > 0")
	}
	if c.Browser.DeviceTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.device_timeout_seconds must be > 0")
	}
	if c.Worker.LeaseSeconds <= c.Browser.DeviceTimeoutSeconds {
		return fmt.Errorf("worker.lease_seconds (%d) must exceed browser.device_timeout_seconds (%d)",
			c.Worker.LeaseSeconds, c.Browser.DeviceTimeoutSeconds)
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q must be one of memory, local, gcs", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Sweeper.Enabled && c.Sweeper.IntervalSeconds <= 0 {
		return fmt.Errorf("sweeper.interval_seconds must be > 0 when the sweeper is enabled")
	}
	return nil
}

// LeaseDuration is how long a worker owns a claimed job between renewals.
func (c Config) LeaseDuration() time.Duration {
	return time.Duration(c.Worker.LeaseSeconds) * time.Second
}

// RequestTimeout bounds a single API request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// SweepInterval is the time between sweeper passes.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Sweeper.IntervalSeconds) * time.Second
}

// PendingGrace is how long a job may stay pending before it is re-enqueued.
func (c Config) PendingGrace() time.Duration {
	return time.Duration(c.Sweeper.PendingGraceSeconds) * time.Second
}

// ConnLifetime bounds how long a pooled Postgres connection lives.
func (c Config) ConnLifetime() time.Duration {
	return time.Duration(c.DB.MaxConnLifetimeMinutes) * time.Minute
}
