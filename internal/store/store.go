// Package store persists the connection list, the id counter and the theme
// preference between runs.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/logger"
	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
)

// Theme is the persisted color theme preference.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// Next cycles system, light, dark, system.
func (t Theme) Next() Theme {
	switch t {
	case ThemeSystem:
		return ThemeLight
	case ThemeLight:
		return ThemeDark
	default:
		return ThemeSystem
	}
}

// ParseTheme accepts a theme name case-insensitively.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeSystem, ThemeLight, ThemeDark:
		return t, nil
	}
	return "", errors.NewValidation(
		fmt.Sprintf("Unknown theme %q", s),
		"Use one of: system, light, dark")
}

// State is everything the store holds.
type State struct {
	Connections []telemetry.Record
	Counter     int
	Theme       Theme
}

// Store is a persistence backend. A store that has never been written loads
// as an empty State with ThemeSystem.
type Store interface {
	Load() (State, error)
	SaveConnections(records []telemetry.Record, counter int) error
	SaveTheme(theme Theme) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options configures Open.
type Options struct {
	Backend string
	Path    string // empty selects DefaultPath for the backend
	Logger  logger.Logger
}

// Open returns the store for opts.Backend.
func Open(opts Options) (Store, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}

	backend := strings.ToLower(opts.Backend)
	if backend == "" {
		backend = BackendFile
	}

	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, BackendSQLite:
	default:
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown store backend %q", opts.Backend),
			"Set store.backend to file, sqlite or memory")
	}

	path := opts.Path
	if path == "" {
		var err error
		path, err = DefaultPath(backend)
		if err != nil {
			return nil, err
		}
	}

	log.Debug("opening %s store at %s", backend, path)
	if backend == BackendSQLite {
		return OpenSQLStore(path, log)
	}
	return NewFileStore(path), nil
}

// DefaultPath returns the per-user state location for backend.
func DefaultPath(backend string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrStore,
			"Couldn't find a config directory for saved connections",
			"Set store.path explicitly")
	}
	name := "state.yaml"
	if backend == BackendSQLite {
		name = "state.db"
	}
	return filepath.Join(dir, "gpuwatch", name), nil
}

func normalizeTheme(t Theme) Theme {
	switch t {
	case ThemeLight, ThemeDark:
		return t
	default:
		return ThemeSystem
	}
}
