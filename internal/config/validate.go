package config

import (
	"fmt"
	"net"
	"time"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
)

// MaxHistorySize caps history_size; each device keeps three buffers of this length.
const MaxHistorySize = 10000

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but gpuwatch only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade gpuwatch or lower the version field")
	}

	checks := []struct {
		section string
		err     error
	}{
		{"mode", validateMode(cfg.Mode)},
		{"stream", validateStream(cfg.Stream)},
		{"history_size", validateHistory(cfg.HistorySize)},
		{"timing", validateDurations(cfg)},
		{"feed_buffer", validateFeedBuffer(cfg.FeedBuffer)},
		{"store", validateStore(cfg.Store)},
		{"metrics", validateMetrics(cfg.Metrics)},
		{"thresholds", validateAllThresholds(cfg.Thresholds)},
	}
	for _, c := range checks {
		if c.err != nil {
			return errors.WrapWithCode(c.err, errors.ErrConfig, c.err.Error(),
				fmt.Sprintf("Check the '%s' setting in your gpuwatch config.", c.section))
		}
	}
	return nil
}

func validateMode(mode string) error {
	switch telemetry.Mode(mode) {
	case telemetry.ModeMulti, telemetry.ModeSingle:
		return nil
	}
	return fmt.Errorf("mode '%s' isn't recognized - use 'multi' or 'single'", mode)
}

func validateStream(stream string) error {
	switch telemetry.StreamMode(stream) {
	case "", telemetry.StreamLive, telemetry.StreamPoll:
		return nil
	}
	return fmt.Errorf("stream '%s' isn't recognized - use 'live' or 'poll'", stream)
}

func validateHistory(n int) error {
	if n < 0 {
		return fmt.Errorf("history_size can't be negative")
	}
	if n > MaxHistorySize {
		return fmt.Errorf("history_size %d is too large (max %d)", n, MaxHistorySize)
	}
	return nil
}

func validateDurations(cfg *Config) error {
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"poll_interval", cfg.PollInterval},
		{"reconnect_delay", cfg.ReconnectDelay},
		{"handshake_timeout", cfg.HandshakeTimeout},
	}
	for _, d := range durations {
		if d.d < 0 {
			return fmt.Errorf("%s can't be negative", d.name)
		}
	}
	if cfg.PollInterval > 0 && cfg.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("poll_interval %v is too aggressive - use at least 100ms", cfg.PollInterval)
	}
	return nil
}

func validateFeedBuffer(n int) error {
	if n < 0 {
		return fmt.Errorf("feed_buffer can't be negative")
	}
	return nil
}

func validateStore(s StoreConfig) error {
	switch s.Backend {
	case "", "file", "sqlite", "memory":
		return nil
	}
	return fmt.Errorf("store.backend '%s' isn't recognized - use 'file', 'sqlite' or 'memory'", s.Backend)
}

func validateMetrics(m MetricsConfig) error {
	if m.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(m.Addr); err != nil {
		return fmt.Errorf("metrics.addr '%s' doesn't look like host:port - try ':9101'", m.Addr)
	}
	return nil
}

func validateAllThresholds(t ThresholdsConfig) error {
	if err := validateThresholds("utilization", t.Utilization, 100); err != nil {
		return err
	}
	if err := validateThresholds("memory", t.Memory, 100); err != nil {
		return err
	}
	return validateThresholds("temperature", t.Temperature, 150)
}

// validateThresholds checks a threshold configuration for a single reading.
func validateThresholds(name string, thresh ThresholdValues, limit int) error {
	// 0 means use default
	if thresh.Warning < 0 || thresh.Warning > limit {
		return fmt.Errorf("thresholds.%s.warning needs to be 0-%d (got %d)", name, limit, thresh.Warning)
	}
	if thresh.Critical < 0 || thresh.Critical > limit {
		return fmt.Errorf("thresholds.%s.critical needs to be 0-%d (got %d)", name, limit, thresh.Critical)
	}
	if thresh.Warning > 0 && thresh.Critical > 0 && thresh.Warning >= thresh.Critical {
		return fmt.Errorf("thresholds.%s.warning (%d) is higher than critical (%d) - should be the other way around", name, thresh.Warning, thresh.Critical)
	}
	return nil
}
