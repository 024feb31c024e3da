package config

import (
	"time"

	"github.com/arthur-debert/bootonce/pkg/errors"
)

// Backend holds the web backend project settings the startup procedure
// needs. Only APIKey and ProjectID are mandatory.
type Backend struct {
	APIKey            string `koanf:"api_key" toml:"api_key"`
	AuthDomain        string `koanf:"auth_domain" toml:"auth_domain"`
	ProjectID         string `koanf:"project_id" toml:"project_id"`
	StorageBucket     string `koanf:"storage_bucket" toml:"storage_bucket"`
	MessagingSenderID string `koanf:"messaging_sender_id" toml:"messaging_sender_id"`
	AppID             string `koanf:"app_id" toml:"app_id"`
	MeasurementID     string `koanf:"measurement_id" toml:"measurement_id"`
}

// Validate reports missing mandatory backend fields as CONFIG_INVALID
func (b Backend) Validate() error {
	var missing []string
	if b.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if b.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if len(missing) > 0 {
		return errors.New(errors.ErrConfigValid, "backend configuration is missing or invalid (api_key or project_id)").
			WithDetail("missing", missing)
	}
	return nil
}

// Startup configures the trigger sources
type Startup struct {
	Triggers   []string `koanf:"triggers" toml:"triggers"`
	QueueSize  int      `koanf:"queue_size" toml:"queue_size"`
	TimerDelay Duration `koanf:"timer_delay" toml:"timer_delay"`
}

// Diagnostics configures the black-box init marker
type Diagnostics struct {
	InitMarker    string `koanf:"init_marker" toml:"init_marker"`
	ExpectedCount int    `koanf:"expected_count" toml:"expected_count"`
}

// Metrics configures the Prometheus endpoint
type Metrics struct {
	Enabled    bool   `koanf:"enabled" toml:"enabled"`
	ListenAddr string `koanf:"listen_addr" toml:"listen_addr"`
}

// Config is the main configuration structure
type Config struct {
	Backend     Backend     `koanf:"backend" toml:"backend"`
	Startup     Startup     `koanf:"startup" toml:"startup"`
	Diagnostics Diagnostics `koanf:"diagnostics" toml:"diagnostics"`
	Metrics     Metrics     `koanf:"metrics" toml:"metrics"`
}

// Validate checks the sections that must be sane before anything starts.
// Backend is checked later by the startup procedure itself.
func (c *Config) Validate() error {
	if c.Startup.QueueSize <= 0 {
		return errors.Newf(errors.ErrConfigValid, "startup.queue_size must be positive, got %d", c.Startup.QueueSize)
	}
	if c.Startup.TimerDelay < 0 {
		return errors.Newf(errors.ErrConfigValid, "startup.timer_delay must not be negative, got %s", c.Startup.TimerDelay)
	}
	if c.Diagnostics.InitMarker == "" {
		return errors.New(errors.ErrConfigValid, "diagnostics.init_marker cannot be empty")
	}
	if c.Diagnostics.ExpectedCount < 0 {
		return errors.Newf(errors.ErrConfigValid, "diagnostics.expected_count must not be negative, got %d", c.Diagnostics.ExpectedCount)
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return errors.New(errors.ErrConfigValid, "metrics.listen_addr is required when metrics are enabled")
	}
	return nil
}

// Duration is a time.Duration that reads and writes as "2s" in TOML
type Duration time.Duration

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
