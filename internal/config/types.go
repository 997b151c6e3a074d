package config

import (
	"time"

	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete gpuwatch configuration file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Mode is "multi" (dashboard, many connections) or "single" (one
	// connection, polling, auto-reconnect).
	Mode string `yaml:"mode" mapstructure:"mode"`

	// HistorySize overrides the per-mode history length (50 multi, 100 single).
	HistorySize int `yaml:"history_size" mapstructure:"history_size"`

	// Stream overrides the per-mode sampling style: "live" or "poll".
	Stream string `yaml:"stream" mapstructure:"stream"`

	// PollInterval is how often /gpu is sent in poll mode.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// AutoReconnect overrides the per-mode reconnect behavior when set.
	AutoReconnect *bool `yaml:"auto_reconnect" mapstructure:"auto_reconnect"`

	// ReconnectDelay is the wait before an automatic reconnect.
	ReconnectDelay time.Duration `yaml:"reconnect_delay" mapstructure:"reconnect_delay"`

	// HandshakeTimeout bounds the WebSocket opening handshake.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout"`

	// FeedBuffer is how many updates may queue for the renderer before
	// new ones are dropped.
	FeedBuffer int `yaml:"feed_buffer" mapstructure:"feed_buffer"`

	// ResolveSSHAliases dials the HostName of a matching ~/.ssh/config entry
	// instead of the literal host.
	ResolveSSHAliases bool `yaml:"resolve_ssh_aliases" mapstructure:"resolve_ssh_aliases"`

	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Thresholds ThresholdsConfig `yaml:"thresholds" mapstructure:"thresholds"`
}

// StoreConfig selects where connections and the theme are saved.
type StoreConfig struct {
	// Backend is "file" (YAML), "sqlite" or "memory".
	Backend string `yaml:"backend" mapstructure:"backend"`

	// Path of the state file; empty uses the per-user default.
	// Supports ~ and ${HOME}-style variables.
	Path string `yaml:"path" mapstructure:"path"`
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics (e.g. ":9101"); empty disables it.
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// ThresholdsConfig colors dashboard readings by severity.
type ThresholdsConfig struct {
	Utilization ThresholdValues `yaml:"utilization" mapstructure:"utilization"`
	Memory      ThresholdValues `yaml:"memory" mapstructure:"memory"`
	Temperature ThresholdValues `yaml:"temperature" mapstructure:"temperature"`
}

// ThresholdValues are the warning and critical levels for one reading.
// Percent for utilization and memory, degrees Celsius for temperature.
type ThresholdValues struct {
	Warning  int `yaml:"warning" mapstructure:"warning"`
	Critical int `yaml:"critical" mapstructure:"critical"`
}

// DefaultConfig returns a Config with sensible defaults. Mode-dependent
// fields stay zero so Policy can fill them from the mode's preset.
func DefaultConfig() *Config {
	return &Config{
		Version:          CurrentConfigVersion,
		Mode:             string(telemetry.ModeMulti),
		PollInterval:     telemetry.DefaultPollInterval,
		ReconnectDelay:   telemetry.DefaultReconnectDelay,
		HandshakeTimeout: telemetry.DefaultHandshakeTimeout,
		FeedBuffer:       telemetry.DefaultFeedBuffer,
		Store: StoreConfig{
			Backend: "file",
		},
		Thresholds: ThresholdsConfig{
			Utilization: ThresholdValues{Warning: 70, Critical: 90},
			Memory:      ThresholdValues{Warning: 70, Critical: 90},
			Temperature: ThresholdValues{Warning: 75, Critical: 85},
		},
	}
}

// Policy builds the connection manager policy: the mode's preset with any
// explicit overrides applied.
func (c *Config) Policy() telemetry.Policy {
	p := telemetry.PolicyFor(telemetry.Mode(c.Mode))

	if c.HistorySize > 0 {
		p.HistorySize = c.HistorySize
	}
	if c.Stream != "" {
		p.Stream = telemetry.StreamMode(c.Stream)
	}
	if c.PollInterval > 0 {
		p.PollInterval = c.PollInterval
	}
	if c.AutoReconnect != nil {
		p.AutoReconnect = *c.AutoReconnect
	}
	if c.ReconnectDelay > 0 {
		p.ReconnectDelay = c.ReconnectDelay
	}
	if c.HandshakeTimeout > 0 {
		p.HandshakeTimeout = c.HandshakeTimeout
	}
	return p
}
