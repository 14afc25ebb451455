package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/cardsync/internal/flagx"
	"github.com/dmitrijs2005/cardsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations rely
// on timex.Duration so the file can say "20m" instead of integer nanoseconds.
// Pointer fields distinguish "absent" from "zero" so the file only overrides
// what it mentions.
type JsonConfig struct {
	ScheduleMode        *string         `json:"schedule_mode"`
	WindowStartHour     *int            `json:"window_start_hour"`
	WindowEndHour       *int            `json:"window_end_hour"`
	InactivityThreshold *timex.Duration `json:"inactivity_threshold"`
	MaxHold             *timex.Duration `json:"max_hold"`
	ReleaseInterval     *timex.Duration `json:"release_interval"`
	ReleaseWait         *timex.Duration `json:"release_wait"`
	Cooldown            *timex.Duration `json:"cooldown"`
	TickInterval        *timex.Duration `json:"tick_interval"`
	EndpointType        *string         `json:"endpoint_type"`
	Endpoint            *string         `json:"endpoint"`
	EndpointUser        *string         `json:"endpoint_user"`
	EndpointPassword    *string         `json:"endpoint_password"`
	S3Region            *string         `json:"s3_region"`
	S3Bucket            *string         `json:"s3_bucket"`
	SourceDir           *string         `json:"source_dir"`
	JournalPath         *string         `json:"journal_path"`
	StatusAddr          *string         `json:"status_addr"`
	LogLevel            *string         `json:"log_level"`
}

// parseJson overlays cfg with values from the JSON file named by -c/-config.
// No file flag means no JSON layer.
func parseJson(cfg *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config %s: %w", jsonConfigFile, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", jsonConfigFile, err)
	}

	applyJson(cfg, &jc)
	return nil
}

func applyJson(cfg *Config, jc *JsonConfig) {
	if jc.ScheduleMode != nil {
		cfg.ScheduleMode = *jc.ScheduleMode
	}
	if jc.WindowStartHour != nil {
		cfg.WindowStartHour = *jc.WindowStartHour
	}
	if jc.WindowEndHour != nil {
		cfg.WindowEndHour = *jc.WindowEndHour
	}
	if jc.InactivityThreshold != nil {
		cfg.InactivityThreshold = jc.InactivityThreshold.Duration
	}
	if jc.MaxHold != nil {
		cfg.MaxHold = jc.MaxHold.Duration
	}
	if jc.ReleaseInterval != nil {
		cfg.ReleaseInterval = jc.ReleaseInterval.Duration
	}
	if jc.ReleaseWait != nil {
		cfg.ReleaseWait = jc.ReleaseWait.Duration
	}
	if jc.Cooldown != nil {
		cfg.Cooldown = jc.Cooldown.Duration
	}
	if jc.TickInterval != nil {
		cfg.TickInterval = jc.TickInterval.Duration
	}
	if jc.EndpointType != nil {
		cfg.EndpointType = *jc.EndpointType
	}
	if jc.Endpoint != nil {
		cfg.Endpoint = *jc.Endpoint
	}
	if jc.EndpointUser != nil {
		cfg.EndpointUser = *jc.EndpointUser
	}
	if jc.EndpointPassword != nil {
		cfg.EndpointPassword = *jc.EndpointPassword
	}
	if jc.S3Region != nil {
		cfg.S3Region = *jc.S3Region
	}
	if jc.S3Bucket != nil {
		cfg.S3Bucket = *jc.S3Bucket
	}
	if jc.SourceDir != nil {
		cfg.SourceDir = *jc.SourceDir
	}
	if jc.JournalPath != nil {
		cfg.JournalPath = *jc.JournalPath
	}
	if jc.StatusAddr != nil {
		cfg.StatusAddr = *jc.StatusAddr
	}
	if jc.LogLevel != nil {
		cfg.LogLevel = *jc.LogLevel
	}
}
