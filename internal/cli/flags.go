package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rileyhilliard/gpuwatch/internal/config"
	"github.com/rileyhilliard/gpuwatch/internal/errors"
)

// WatchFlags override config for a single watch session.
type WatchFlags struct {
	Mode         string
	Stream       string
	PollInterval string
	MetricsAddr  string
	Plain        bool
	NoConnect    bool
}

// AddWatchFlags registers the watch flags on a command.
func AddWatchFlags(cmd *cobra.Command, flags *WatchFlags) {
	cmd.Flags().StringVar(&flags.Mode, "mode", "", "multi (dashboard) or single (one connection, polling, auto-reconnect)")
	cmd.Flags().StringVar(&flags.Stream, "stream", "", "live (server pushes) or poll (periodic /gpu)")
	cmd.Flags().StringVar(&flags.PollInterval, "poll-interval", "", "how often to send /gpu in poll mode (e.g., 1s, 500ms)")
	cmd.Flags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (e.g., :9101)")
	cmd.Flags().BoolVar(&flags.Plain, "plain", false, "print one line per update instead of the dashboard")
	cmd.Flags().BoolVar(&flags.NoConnect, "no-connect", false, "start with every connection disconnected")
}

// Apply copies set flags onto cfg.
func (f WatchFlags) Apply(cfg *config.Config) error {
	if f.Mode != "" {
		cfg.Mode = f.Mode
	}
	if f.Stream != "" {
		cfg.Stream = f.Stream
	}
	if f.MetricsAddr != "" {
		cfg.Metrics.Addr = f.MetricsAddr
	}
	interval, err := ParseDurationFlag("poll-interval", f.PollInterval)
	if err != nil {
		return err
	}
	if interval > 0 {
		cfg.PollInterval = interval
	}
	return nil
}

// ParseDurationFlag parses a duration flag. Returns zero if the flag is empty.
func ParseDurationFlag(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a valid --%s", value, name),
			"Try something like 5s, 2m, or 500ms.")
	}
	if duration <= 0 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("--%s must be positive, got %s", name, value),
			"Try something like 5s, 2m, or 500ms.")
	}
	return duration, nil
}
