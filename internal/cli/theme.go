package cli

import (
	"fmt"
	"io"

	"github.com/rileyhilliard/gpuwatch/internal/store"
	"github.com/rileyhilliard/gpuwatch/internal/ui"
)

// themeShow prints the saved theme.
func themeShow(w io.Writer) error {
	s, err := openSession(sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	if MachineMode() {
		return WriteJSONSuccess(w, map[string]string{"theme": string(s.state.Theme)})
	}
	fmt.Fprintln(w, s.state.Theme)
	return nil
}

// themeSet saves name as the theme. An empty name advances to the next one.
func themeSet(w io.Writer, name string) error {
	s, err := openSession(sessionOptions{})
	if err != nil {
		return err
	}
	defer s.Close()

	theme := s.state.Theme.Next()
	if name != "" {
		if theme, err = store.ParseTheme(name); err != nil {
			return err
		}
	}

	if err := s.store.SaveTheme(theme); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s Theme set to %s\n", ui.SymbolSuccess, theme)
	return nil
}
