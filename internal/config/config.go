// Package config provides configuration types and defaults for botctl.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds all configuration for botctl.
type Config struct {
	Backend     BackendConfig     `yaml:"backend" mapstructure:"backend"`
	Connection  ConnectionConfig  `yaml:"connection" mapstructure:"connection"`
	Health      HealthConfig      `yaml:"health" mapstructure:"health"`
	Notify      NotifyConfig      `yaml:"notify" mapstructure:"notify"`
	Paths       PathsConfig       `yaml:"paths" mapstructure:"paths"`
	LogRotation LogRotationConfig `yaml:"log_rotation" mapstructure:"log_rotation"`
	Dashboard   DashboardConfig   `yaml:"dashboard" mapstructure:"dashboard"`
}

// BackendConfig locates the bot's API.
type BackendConfig struct {
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	WSURL          string        `yaml:"ws_url" mapstructure:"ws_url"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// ConnectionConfig holds duplex channel settings.
type ConnectionConfig struct {
	ReconnectDelay   time.Duration `yaml:"reconnect_delay" mapstructure:"reconnect_delay"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout"`
}

// HealthConfig holds liveness probe settings.
type HealthConfig struct {
	Interval     time.Duration `yaml:"interval" mapstructure:"interval"`
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"` // Failed probes before the lost-connection alert
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
}

// NotifyConfig holds notification settings.
type NotifyConfig struct {
	DisplayWindow time.Duration `yaml:"display_window" mapstructure:"display_window"`
	SoundDefault  bool          `yaml:"sound_default" mapstructure:"sound_default"` // Used until a preference is saved
	Bell          bool          `yaml:"bell" mapstructure:"bell"`                   // Ring the terminal bell for audio cues
}

// PathsConfig holds file paths for the preference db and logs.
type PathsConfig struct {
	Prefs    string `yaml:"prefs" mapstructure:"prefs"`
	EventLog string `yaml:"event_log" mapstructure:"event_log"`
	DebugLog string `yaml:"debug_log" mapstructure:"debug_log"`
}

// LogRotationConfig holds settings for log file rotation.
// Used for the dashboard debug log (lumberjack-based automatic rotation).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// DashboardConfig holds settings for the terminal dashboard.
type DashboardConfig struct {
	Enabled     bool `yaml:"enabled" mapstructure:"enabled"`           // Use the dashboard when stdout is a terminal
	EventBuffer int  `yaml:"event_buffer" mapstructure:"event_buffer"` // Bus stream buffer feeding the dashboard
}

// Default returns a Config pointing at a backend on localhost.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        "http://localhost:8000",
			WSURL:          "ws://localhost:8000/ws",
			RequestTimeout: 10 * time.Second,
		},
		Connection: ConnectionConfig{
			ReconnectDelay:   3 * time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Health: HealthConfig{
			Interval:     10 * time.Second,
			MaxRetries:   5,
			ProbeTimeout: 5 * time.Second,
		},
		Notify: NotifyConfig{
			DisplayWindow: 5 * time.Second,
			SoundDefault:  true,
			Bell:          true,
		},
		Paths: PathsConfig{
			Prefs:    ".botctl/prefs.db",
			EventLog: ".botctl/events.jsonl",
			DebugLog: ".botctl/botctl-debug.log",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Dashboard: DashboardConfig{
			Enabled:     true,
			EventBuffer: 100,
		},
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if err := checkURL(c.Backend.BaseURL, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("backend.base_url: %w", err))
	}
	if err := checkURL(c.Backend.WSURL, "ws", "wss"); err != nil {
		errs = append(errs, fmt.Errorf("backend.ws_url: %w", err))
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"backend.request_timeout", c.Backend.RequestTimeout},
		{"connection.reconnect_delay", c.Connection.ReconnectDelay},
		{"connection.handshake_timeout", c.Connection.HandshakeTimeout},
		{"health.interval", c.Health.Interval},
		{"health.probe_timeout", c.Health.ProbeTimeout},
		{"notify.display_window", c.Notify.DisplayWindow},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.d))
		}
	}

	if c.Health.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("health.max_retries must be at least 1, got %d", c.Health.MaxRetries))
	}
	if c.Dashboard.EventBuffer < 1 {
		errs = append(errs, fmt.Errorf("dashboard.event_buffer must be at least 1, got %d", c.Dashboard.EventBuffer))
	}

	return errors.Join(errs...)
}

func checkURL(raw string, schemes ...string) error {
	if raw == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return errors.New("missing host")
			}
			return nil
		}
	}
	return fmt.Errorf("scheme %q not allowed", u.Scheme)
}
