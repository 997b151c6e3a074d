package cli

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rileyhilliard/gpuwatch/internal/config"
	"github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/ui"
)

// configShow prints the effective config, environment overrides included.
func configShow(w io.Writer) error {
	s, err := openSession(sessionOptions{configOnly: true})
	if err != nil {
		return err
	}

	source := s.cfgPath
	if source == "" {
		source = "defaults (no config file)"
	}
	fmt.Fprintln(w, ui.MutedStyle().Render("# source: "+source))

	data, err := yaml.Marshal(s.cfg)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't render the config",
			"This is unexpected - please report this bug!")
	}
	_, err = w.Write(data)
	return err
}

// configSet writes key=value to the config file, keeping the old file if the
// result would not validate.
func configSet(w io.Writer, key, value string) error {
	path, err := configPathForWrite()
	if err != nil {
		return err
	}

	previous, readErr := os.ReadFile(path)
	existed := readErr == nil

	if err := config.SetValue(path, key, value); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("Couldn't set %s", key),
			"Run 'gpuwatch config set --help' to see the keys you can set")
	}

	cfg, err := config.Load(path)
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		if existed {
			_ = os.WriteFile(path, previous, 0644)
		} else {
			_ = os.Remove(path)
		}
		return err
	}

	fmt.Fprintf(w, "%s Set %s = %s in %s\n", ui.SymbolSuccess, key, value, path)
	return nil
}

// configPathForWrite is where config changes go: --config (which need not
// exist yet), the file that would be loaded, or the global path.
func configPathForWrite() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	found, err := config.Find("")
	if err != nil {
		return "", err
	}
	if found != "" {
		return found, nil
	}
	if p := config.GlobalPath(); p != "" {
		return p, nil
	}
	return "", errors.New(errors.ErrConfig,
		"Couldn't find your home directory to create a config file",
		"Pass --config with a path to write to")
}
