package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for both nestwatch binaries.
// Environment variables are parsed with the NESTWATCH_ prefix, e.g.
// NESTWATCH_HTTP_PORT, NESTWATCH_REMOTE_DRIVER.
type Config struct {
	// HTTP Configuration (agent only)
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Shared state store. Empty derives a per-user default path.
	StatePath string `envconfig:"STATE_PATH" default:""`

	// Remote document store: "http" (hosted API) or "postgres" (self-hosted).
	RemoteDriver  string `envconfig:"REMOTE_DRIVER" default:"http"`
	RemoteBaseURL string `envconfig:"REMOTE_BASE_URL" default:"http://localhost:8443"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN" default:""`

	// Reconciliation pass cadence in the host context.
	SyncIntervalSeconds int `envconfig:"SYNC_INTERVAL_SECONDS" default:"600"`

	// Reporter spool sweep cadence; segment files also trigger via fsnotify.
	ReportIntervalSeconds int `envconfig:"REPORT_INTERVAL_SECONDS" default:"60"`

	// Directory the reporting environment drops segment files into.
	SpoolDir string `envconfig:"SPOOL_DIR" default:""`

	// Per-app time-range retention (FIFO).
	TimeRangeRetention int `envconfig:"TIME_RANGE_RETENTION" default:"100"`

	// Owner identity. Empty means no guardian is signed in and passes skip.
	OwnerID string `envconfig:"OWNER_ID" default:""`

	// Optional webhook URL for guardian notifications; empty logs locally.
	NotifyWebhookURL string `envconfig:"NOTIFY_WEBHOOK_URL" default:""`

	// Health checking
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults validates the remote driver and derives file paths that
// were left empty.
func (c *Config) ResolveDefaults() error {
	switch c.RemoteDriver {
	case "http":
		if c.RemoteBaseURL == "" {
			return fmt.Errorf("REMOTE_BASE_URL required for http remote driver")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN required for postgres remote driver")
		}
	default:
		return fmt.Errorf("unsupported REMOTE_DRIVER: %s", c.RemoteDriver)
	}

	if c.SyncIntervalSeconds <= 0 {
		return fmt.Errorf("SYNC_INTERVAL_SECONDS must be positive")
	}
	if c.ReportIntervalSeconds <= 0 {
		return fmt.Errorf("REPORT_INTERVAL_SECONDS must be positive")
	}
	if c.TimeRangeRetention <= 0 {
		return fmt.Errorf("TIME_RANGE_RETENTION must be positive")
	}

	if c.StatePath == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("derive state path: %w", err)
		}
		c.StatePath = filepath.Join(base, "nestwatch", "state.db")
	}
	if c.SpoolDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("derive spool dir: %w", err)
		}
		c.SpoolDir = filepath.Join(base, "nestwatch", "spool")
	}
	return nil
}

// New creates a Config from NESTWATCH_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("NESTWATCH", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting returns a config with test-friendly defaults rooted in dir.
func NewForTesting(dir string) *Config {
	return &Config{
		HTTPPort:                  8080,
		StatePath:                 filepath.Join(dir, "state.db"),
		RemoteDriver:              "http",
		RemoteBaseURL:             "http://localhost:8443",
		SyncIntervalSeconds:       600,
		ReportIntervalSeconds:     60,
		SpoolDir:                  filepath.Join(dir, "spool"),
		TimeRangeRetention:        100,
		OwnerID:                   "owner-test",
		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 2,
	}
}

// GetHTTPAddr returns the agent HTTP listen address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
