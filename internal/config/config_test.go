package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Worker.Concurrency != 2 || cfg.Queue.Depth != 64 {
		t.Fatalf("unexpected worker defaults: %+v %+v", cfg.Worker, cfg.Queue)
	}
	if cfg.Browser.NavTimeoutSeconds != 15 || cfg.Browser.DynamicTimeoutSeconds != 30 || cfg.Browser.DeviceTimeoutSeconds != 90 {
		t.Fatalf("unexpected browser timeouts: %+v", cfg.Browser)
	}
	if cfg.Storage.Backend != StorageLocal {
		t.Fatalf("expected local storage backend, got %q", cfg.Storage.Backend)
	}
	if got := cfg.LeaseDuration(); got != 5*time.Minute {
		t.Fatalf("expected 5m lease, got %v", got)
	}
	if got := cfg.SweepInterval(); got != time.Minute {
		t.Fatalf("expected 1m sweep interval, got %v", got)
	}
	if got := cfg.PendingGrace(); got != 2*time.Minute {
		t.Fatalf("expected 2m pending grace, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  request_timeout_seconds: 20
auth:
  enabled: true
  api_key: secret
worker:
  concurrency: 6
  lease_seconds: 600
queue:
  depth: 128
browser:
  enabled: false
  nav_timeout_seconds: 25
  device_timeout_seconds: 120
  no_sandbox: true
storage:
  backend: gcs
  gcs_bucket: captures-bucket
  prefix: prod
db:
  dsn: postgres://localhost/webcapture
  max_conns: 4
pubsub:
  project_id: demo
  topic_name: capture-events
logging:
  development: false
  level: warn
sweeper:
  interval_seconds: 30
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Worker.Concurrency != 6 || cfg.Queue.Depth != 128 {
		t.Fatalf("expected worker overrides to apply: %+v", cfg.Worker)
	}
	if cfg.Browser.Enabled || !cfg.Browser.NoSandbox || cfg.Browser.DeviceTimeoutSeconds != 120 {
		t.Fatalf("expected browser overrides to apply: %+v", cfg.Browser)
	}
	if cfg.Browser.DynamicTimeoutSeconds != 30 {
		t.Fatalf("expected untouched default to survive, got %d", cfg.Browser.DynamicTimeoutSeconds)
	}
	if cfg.Storage.Backend != StorageGCS || cfg.Storage.GCSBucket != "captures-bucket" || cfg.Storage.Prefix != "prod" {
		t.Fatalf("expected storage overrides: %+v", cfg.Storage)
	}
	if cfg.DB.DSN == "" || cfg.DB.MaxConns != 4 {
		t.Fatalf("expected db overrides: %+v", cfg.DB)
	}
	if cfg.PubSub.TopicName != "capture-events" {
		t.Fatalf("expected pubsub topic, got %q", cfg.PubSub.TopicName)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging overrides: %+v", cfg.Logging)
	}
	if got := cfg.RequestTimeout(); got != 20*time.Second {
		t.Fatalf("expected request timeout 20s, got %v", got)
	}
	if got := cfg.SweepInterval(); got != 30*time.Second {
		t.Fatalf("expected sweep interval 30s, got %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read config error, got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Worker:  WorkerConfig{Concurrency: 1, LeaseSeconds: 300},
		Queue:   QueueConfig{Depth: 8},
		Browser: BrowserConfig{NavTimeoutSeconds: 15, DynamicTimeoutSeconds: 30, DeviceTimeoutSeconds: 90},
		Storage: StorageConfig{Backend: StorageMemory},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "auth missing api key", mutate: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "invalid concurrency", mutate: func(c *Config) { c.Worker.Concurrency = 0 }, want: "worker.concurrency"},
		{name: "invalid queue depth", mutate: func(c *Config) { c.Queue.Depth = 0 }, want: "queue.depth"},
		{name: "negative domain rate", mutate: func(c *Config) { c.Worker.DomainRPS = -1 }, want: "worker.domain_rps"},
		{name: "invalid nav timeout", mutate: func(c *Config) { c.Browser.NavTimeoutSeconds = 0 }, want: "browser.nav_timeout_seconds"},
		{name: "invalid device timeout", mutate: func(c *Config) { c.Browser.DeviceTimeoutSeconds = 0 }, want: "browser.device_timeout_seconds"},
		{name: "lease shorter than device cap", mutate: func(c *Config) { c.Worker.LeaseSeconds = 60 }, want: "worker.lease_seconds"},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Backend = "s3" }, want: "storage.backend"},
		{name: "local without dir", mutate: func(c *Config) { c.Storage.Backend = StorageLocal }, want: "storage.base_dir"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = StorageGCS }, want: "storage.gcs_bucket"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.TopicName = "events" }, want: "pubsub.project_id"},
		{
			name: "sweeper without interval",
			mutate: func(c *Config) {
				c.Sweeper.Enabled = true
				c.Sweeper.IntervalSeconds = 0
			},
			want: "sweeper.interval_seconds",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
