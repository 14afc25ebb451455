// Package config assembles the agent's runtime settings. Sources are layered
// defaults -> environment -> JSON file -> command-line flags, later sources
// taking precedence.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces the agent's environment variables (CARDSYNC_*).
const envPrefix = "cardsync"

// Config holds runtime settings for the upload agent.
//
// Units: window hours are local hours 0-23; durations are time.Duration.
type Config struct {
	// Schedule policy.
	ScheduleMode        string        `envconfig:"SCHEDULE_MODE"`
	WindowStartHour     int           `envconfig:"WINDOW_START_HOUR"`
	WindowEndHour       int           `envconfig:"WINDOW_END_HOUR"`
	InactivityThreshold time.Duration `envconfig:"INACTIVITY_THRESHOLD"`

	// Card-hold policy.
	MaxHold         time.Duration `envconfig:"MAX_HOLD"`
	ReleaseInterval time.Duration `envconfig:"RELEASE_INTERVAL"`
	ReleaseWait     time.Duration `envconfig:"RELEASE_WAIT"`
	Cooldown        time.Duration `envconfig:"COOLDOWN"`
	TickInterval    time.Duration `envconfig:"TICK_INTERVAL"`

	// Remote endpoint.
	EndpointType     string `envconfig:"ENDPOINT_TYPE"`
	Endpoint         string `envconfig:"ENDPOINT"`
	EndpointUser     string `envconfig:"ENDPOINT_USER"`
	EndpointPassword string `envconfig:"ENDPOINT_PASSWORD"`
	S3Region         string `envconfig:"S3_REGION"`
	S3Bucket         string `envconfig:"S3_BUCKET"`

	// Local paths and surfaces.
	SourceDir   string `envconfig:"SOURCE_DIR"`
	JournalPath string `envconfig:"JOURNAL_PATH"`
	StatusAddr  string `envconfig:"STATUS_ADDR"`
	LogLevel    string `envconfig:"LOG_LEVEL"`
}

// LoadDefaults populates c with conservative defaults: nightly window, short
// card holds, WebDAV endpoint left unset.
func (c *Config) LoadDefaults() {
	c.ScheduleMode = "scheduled"
	c.WindowStartHour = 22
	c.WindowEndHour = 6
	c.InactivityThreshold = 20 * time.Minute
	c.MaxHold = 5 * time.Minute
	c.ReleaseInterval = 60 * time.Second
	c.ReleaseWait = 5 * time.Second
	c.Cooldown = 0 // 0 means the budget tracker's fixed wait
	c.TickInterval = time.Second
	c.EndpointType = "webdav"
	c.SourceDir = "/mnt/card"
	c.JournalPath = "/mnt/card/.upload_journal.json"
	c.StatusAddr = ":8080"
	c.LogLevel = "info"
}

// Validate rejects configurations the scheduler cannot run with.
func (c *Config) Validate() error {
	switch c.ScheduleMode {
	case "scheduled", "smart":
	default:
		return fmt.Errorf("invalid schedule mode %q", c.ScheduleMode)
	}
	if c.WindowStartHour < 0 || c.WindowStartHour > 23 {
		return fmt.Errorf("window start hour %d out of range", c.WindowStartHour)
	}
	if c.WindowEndHour < 0 || c.WindowEndHour > 23 {
		return fmt.Errorf("window end hour %d out of range", c.WindowEndHour)
	}
	switch c.EndpointType {
	case "webdav", "s3", "tokenapi":
	default:
		return fmt.Errorf("invalid endpoint type %q", c.EndpointType)
	}
	if c.MaxHold <= 0 {
		return fmt.Errorf("max hold must be positive, got %v", c.MaxHold)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", c.TickInterval)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays environment
// variables, JSON (if a config file was given) and command-line flags.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	parseFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
