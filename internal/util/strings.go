// Package util holds small string helpers shared by the CLI and dashboard.
package util

import (
	"fmt"
	"strings"
)

// JoinOrDefault joins strings with ", " or returns def for an empty slice.
func JoinOrDefault(items []string, def string) string {
	if len(items) == 0 {
		return def
	}
	return strings.Join(items, ", ")
}

// Pluralize returns singular if count is 1, otherwise plural.
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// Count formats "1 GPU", "3 GPUs". The plural adds an s.
func Count(n int, noun string) string {
	return fmt.Sprintf("%d %s", n, Pluralize(n, noun, noun+"s"))
}
