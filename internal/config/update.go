package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// SettableKeys are the dotted keys accepted by SetValue.
var SettableKeys = []string{
	"mode",
	"history_size",
	"stream",
	"poll_interval",
	"auto_reconnect",
	"reconnect_delay",
	"handshake_timeout",
	"feed_buffer",
	"resolve_ssh_aliases",
	"store.backend",
	"store.path",
	"metrics.addr",
	"thresholds.utilization.warning",
	"thresholds.utilization.critical",
	"thresholds.memory.warning",
	"thresholds.memory.critical",
	"thresholds.temperature.warning",
	"thresholds.temperature.critical",
}

// SetValue writes key=value into the config file at configPath, creating
// the file and any intermediate mappings as needed. It preserves the
// existing YAML structure and comments.
func SetValue(configPath, key, value string) error {
	if !slices.Contains(SettableKeys, key) {
		return fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(SettableKeys, ", "))
	}

	var root yaml.Node
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
		data = nil
	case err != nil:
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, &root); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if root.Kind == 0 {
		root = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("invalid YAML document structure")
	}

	node := root.Content[0]
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping at document root")
	}

	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		child := findMapValue(node, part)
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			node.Content = append(node.Content, scalar(part), child)
		}
		if child.Kind != yaml.MappingNode {
			return fmt.Errorf("'%s' is not a mapping in %s", part, configPath)
		}
		node = child
	}

	leaf := parts[len(parts)-1]
	if existing := findMapValue(node, leaf); existing != nil {
		existing.Kind = yaml.ScalarNode
		existing.Tag = ""
		existing.Value = value
		existing.Content = nil
	} else {
		valueNode := scalar(value)
		valueNode.Tag = ""
		node.Content = append(node.Content, scalar(leaf), valueNode)
	}

	var buf strings.Builder
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}
