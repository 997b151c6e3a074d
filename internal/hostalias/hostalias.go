// Package hostalias resolves connection hosts through ~/.ssh/config, so a
// connection can be entered as "gpu-box" and dial the HostName behind it.
package hostalias

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kevinburke/ssh_config"

	"github.com/rileyhilliard/gpuwatch/internal/logger"
)

// Entry is one concrete Host alias from an SSH config.
type Entry struct {
	Alias    string // The Host pattern (alias)
	HostName string // The HostName value (actual host to connect to)
}

// Description returns a user-friendly description of the alias.
func (e Entry) Description() string {
	if e.HostName != "" && e.HostName != e.Alias {
		return e.Alias + " (" + e.HostName + ")"
	}
	return e.Alias
}

// Resolver maps aliases to host names. The zero value resolves nothing.
type Resolver struct {
	entries map[string]Entry
}

// DefaultPath returns ~/.ssh/config.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".ssh", "config")
}

// Load parses the SSH config at path. A missing file yields an empty resolver.
func Load(path string, log logger.Logger) (*Resolver, error) {
	if log == nil {
		log = logger.Noop()
	}

	content, matchLine, err := preprocess(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Resolver{}, nil // No SSH config is fine
		}
		return nil, err
	}
	if matchLine > 0 {
		log.Debug("ssh config %s: ignoring everything from the Match block on line %d", path, matchLine)
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	r := &Resolver{entries: make(map[string]Entry)}
	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()

			// Skip wildcards and special patterns
			if strings.ContainsAny(alias, "*?!") {
				continue
			}
			if _, seen := r.entries[alias]; seen {
				continue
			}

			entry := Entry{Alias: alias}
			if hostname, _ := cfg.Get(alias, "HostName"); hostname != "" {
				entry.HostName = hostname
			}
			r.entries[alias] = entry
		}
	}
	log.Debug("loaded %d ssh aliases from %s", len(r.entries), path)
	return r, nil
}

// Resolve returns the HostName for an alias, or host unchanged when it is
// not an alias or has no HostName.
func (r *Resolver) Resolve(host string) string {
	if r == nil {
		return host
	}
	if e, ok := r.entries[host]; ok && e.HostName != "" {
		return e.HostName
	}
	return host
}

// Entries returns every alias sorted by name.
func (r *Resolver) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Alias < out[j].Alias
	})
	return out
}

// Aliases returns just the alias names, sorted.
func (r *Resolver) Aliases() []string {
	entries := r.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Alias
	}
	return out
}

// preprocess drops everything from the first Match directive on, since the
// parser does not understand Match blocks. Returns the 1-indexed line of the
// Match directive, or 0.
func preprocess(path string) ([]byte, int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		// Match directive check (case insensitive)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}
