package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/logger"
	"github.com/rileyhilliard/gpuwatch/internal/monitor"
	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
	"github.com/rileyhilliard/gpuwatch/internal/ui"
)

// runDashboard is the full-screen program. Tests replace it.
var runDashboard = func(s *session) error {
	if logger.DebugEnabled() {
		f, err := tea.LogToFile(filepath.Join(os.TempDir(), "gpuwatch-debug.log"), "gpuwatch")
		if err == nil {
			defer f.Close()
		}
	} else {
		log.SetOutput(io.Discard)
		defer log.SetOutput(os.Stderr)
	}

	model := monitor.NewModel(monitor.Options{
		Manager:    s.mgr,
		Events:     s.feed.Events(),
		Themes:     s.store,
		Theme:      s.state.Theme,
		Thresholds: thresholdsFrom(s.cfg.Thresholds),
		Logger:     s.log,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return errors.Wrap(err, "The dashboard stopped unexpectedly")
	}
	return nil
}

// watch opens every saved connection and shows updates until interrupted.
func watch(ctx context.Context, w io.Writer, flags WatchFlags) error {
	s, err := openSession(sessionOptions{feed: true, override: flags.Apply})
	if err != nil {
		return err
	}
	defer s.Close()

	if addr := s.cfg.Metrics.Addr; addr != "" {
		srv, err := telemetry.StartMetricsServer(addr, s.registry)
		if err != nil {
			return err
		}
		defer srv.Close()
		s.log.Info("serving metrics on http://%s%s", srv.Addr(), telemetry.MetricsPath)
	}

	if !flags.NoConnect {
		s.mgr.ConnectAll()
	}

	if flags.Plain || !isInteractive() {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return streamEvents(ctx, w, s)
	}
	return runDashboard(s)
}

// streamEvents prints one line per feed event until ctx ends.
func streamEvents(ctx context.Context, w io.Writer, s *session) error {
	if s.mgr.Len() == 0 {
		fmt.Fprintln(w, "No connections saved. Add one with: gpuwatch conn add")
		return nil
	}

	names := make(map[int]string)
	for _, c := range s.mgr.Connections() {
		names[c.ID] = c.Name
	}

	for {
		select {
		case <-ctx.Done():
			if n := s.feed.Dropped(); n > 0 {
				s.log.Warn("%d updates were dropped because output fell behind", n)
			}
			return nil
		case ev := <-s.feed.Events():
			if ev.Kind == telemetry.EventAdded {
				if info, ok := s.mgr.Get(ev.ConnectionID); ok {
					names[info.ID] = info.Name
				}
			}
			name, ok := names[ev.ConnectionID]
			if !ok {
				name = fmt.Sprintf("#%d", ev.ConnectionID)
			}
			if line := formatEvent(name, ev); line != "" {
				fmt.Fprintln(w, line)
			}
			if ev.Kind == telemetry.EventRemoved {
				delete(names, ev.ConnectionID)
			}
		}
	}
}

// formatEvent renders ev as a single line, or "" for events not worth printing.
func formatEvent(name string, ev telemetry.Event) string {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	prefix := ts.Format("15:04:05") + " " + name

	switch ev.Kind {
	case telemetry.EventDevice:
		d := ev.Device
		util, mem, temp, ok := d.Latest()
		if !ok {
			return ""
		}
		return fmt.Sprintf("%s GPU%d %s util %.0f%% mem %.0f%% temp %.0f°C",
			prefix, d.Index, d.Name, util, mem, temp)

	case telemetry.EventState:
		switch ev.State {
		case telemetry.StateConnected:
			return fmt.Sprintf("%s %s connected", prefix, ui.SymbolConnected)
		case telemetry.StateConnecting:
			return fmt.Sprintf("%s connecting...", prefix)
		default:
			if ev.Err != nil {
				return fmt.Sprintf("%s %s disconnected: %s", prefix, ui.SymbolDisconnected, errors.ShortMessage(ev.Err))
			}
			return fmt.Sprintf("%s %s disconnected", prefix, ui.SymbolDisconnected)
		}

	case telemetry.EventStatus:
		st := ev.Status
		switch {
		case st.Status == telemetry.StatusError:
			return fmt.Sprintf("%s %s server error: %s", prefix, ui.SymbolFail, st.Message)
		case st.Message != "":
			return fmt.Sprintf("%s status %s - %s", prefix, st.Status, st.Message)
		case st.Help != "":
			return fmt.Sprintf("%s status %s (commands: %s)", prefix, st.Status, st.Help)
		default:
			return fmt.Sprintf("%s status %s", prefix, st.Status)
		}

	case telemetry.EventRemoved:
		return prefix + " removed"
	}
	return ""
}
