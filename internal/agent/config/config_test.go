package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args []string) {
	t.Helper()
	orig := os.Args
	os.Args = append([]string{"agent"}, args...)
	t.Cleanup(func() { os.Args = orig })
}

func TestLoadConfig_Defaults(t *testing.T) {
	withArgs(t, nil)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "scheduled", cfg.ScheduleMode)
	assert.Equal(t, 22, cfg.WindowStartHour)
	assert.Equal(t, 6, cfg.WindowEndHour)
	assert.Equal(t, 20*time.Minute, cfg.InactivityThreshold)
	assert.Equal(t, 5*time.Minute, cfg.MaxHold)
	assert.Equal(t, 60*time.Second, cfg.ReleaseInterval)
	assert.Equal(t, "webdav", cfg.EndpointType)
	assert.Equal(t, ":8080", cfg.StatusAddr)
}

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	withArgs(t, nil)
	t.Setenv("CARDSYNC_SCHEDULE_MODE", "smart")
	t.Setenv("CARDSYNC_MAX_HOLD", "90s")
	t.Setenv("CARDSYNC_WINDOW_START_HOUR", "23")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "smart", cfg.ScheduleMode)
	assert.Equal(t, 90*time.Second, cfg.MaxHold)
	assert.Equal(t, 23, cfg.WindowStartHour)
	// untouched fields keep their defaults
	assert.Equal(t, 6, cfg.WindowEndHour)
}

func TestLoadConfig_JsonOverridesEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{
		"schedule_mode": "smart",
		"max_hold": "2m",
		"inactivity_threshold": "30m",
		"endpoint": "https://dav.example.com/remote.php/dav"
	}`), 0o600))

	withArgs(t, []string{"-c", file})
	t.Setenv("CARDSYNC_MAX_HOLD", "90s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "smart", cfg.ScheduleMode)
	assert.Equal(t, 2*time.Minute, cfg.MaxHold)
	assert.Equal(t, 30*time.Minute, cfg.InactivityThreshold)
	assert.Equal(t, "https://dav.example.com/remote.php/dav", cfg.Endpoint)
	// fields the file does not mention keep earlier layers
	assert.Equal(t, 22, cfg.WindowStartHour)
}

func TestLoadConfig_FlagsWin(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"schedule_mode": "smart"}`), 0o600))

	withArgs(t, []string{"-c", file, "-m", "scheduled", "-d", "/media/sd", "-addr", ":9090"})

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "scheduled", cfg.ScheduleMode)
	assert.Equal(t, "/media/sd", cfg.SourceDir)
	assert.Equal(t, ":9090", cfg.StatusAddr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"bad mode", func(c *Config) { c.ScheduleMode = "always" }, "schedule mode"},
		{"bad start hour", func(c *Config) { c.WindowStartHour = 24 }, "start hour"},
		{"bad end hour", func(c *Config) { c.WindowEndHour = -1 }, "end hour"},
		{"bad endpoint type", func(c *Config) { c.EndpointType = "ftp" }, "endpoint type"},
		{"zero max hold", func(c *Config) { c.MaxHold = 0 }, "max hold"},
		{"zero tick", func(c *Config) { c.TickInterval = 0 }, "tick interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.LoadDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
