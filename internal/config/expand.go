package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Does not support ~username syntax - just ~ for the current user.
func ExpandTilde(path string) string {
	if path == "" {
		return path
	}

	// Handle ~/path
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path // Return unchanged if we can't get home
		}
		return filepath.Join(home, path[2:])
	}

	// Handle standalone ~
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	return path
}

// Expand replaces variables in a string with their values.
// Supported variables:
//   - ${USER}   - current username
//   - ${HOME}   - user's home directory
//   - ${CONFIG} - the per-user config directory (XDG_CONFIG_HOME or platform default)
//
// Unknown variables are left untouched.
func Expand(s string) string {
	if s == "" || !strings.Contains(s, "${") {
		return s
	}

	replacements := map[string]func() string{
		"${USER}":   getUser,
		"${HOME}":   getHome,
		"${CONFIG}": getConfigDir,
	}

	result := s
	for variable, value := range replacements {
		if strings.Contains(result, variable) {
			result = strings.ReplaceAll(result, variable, value())
		}
	}
	return result
}

// ExpandPath applies Expand and then ExpandTilde, for local file paths.
func ExpandPath(path string) string {
	return ExpandTilde(Expand(path))
}

// getUser returns the current username for ${USER} expansion.
func getUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	if user := os.Getenv("USERNAME"); user != "" {
		return user
	}
	return "user"
}

// getHome returns the home directory for ${HOME} expansion.
func getHome() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	return "~"
}

func getConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	return filepath.Join(getHome(), ".config")
}
