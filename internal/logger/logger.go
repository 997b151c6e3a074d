// Package logger is the logging interface shared by the telemetry manager,
// the stores and the CLI. Output goes through the standard log package so
// the dashboard can redirect it in one place.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// DebugEnv is the environment variable that enables debug output.
const DebugEnv = "GPUWATCH_DEBUG"

// Logger is printf-style leveled logging.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// DebugEnabled reports whether GPUWATCH_DEBUG is set.
func DebugEnabled() bool {
	return os.Getenv(DebugEnv) != ""
}

// envLogger writes to the standard logger. Debug lines need GPUWATCH_DEBUG.
type envLogger struct {
	prefix string
}

// NewEnvLogger creates a logger whose lines start with prefix (e.g. "[conn]").
func NewEnvLogger(prefix string) Logger {
	return &envLogger{prefix: prefix}
}

func (l *envLogger) printf(level, format string, args ...any) {
	var b strings.Builder
	if l.prefix != "" {
		b.WriteString(l.prefix)
		b.WriteByte(' ')
	}
	if level != "" {
		b.WriteString(level)
		b.WriteString(": ")
	}
	b.WriteString(format)
	log.Printf(b.String(), args...)
}

func (l *envLogger) Debug(format string, args ...any) {
	if DebugEnabled() {
		l.printf("", format, args...)
	}
}

func (l *envLogger) Info(format string, args ...any)  { l.printf("", format, args...) }
func (l *envLogger) Warn(format string, args ...any)  { l.printf("WARN", format, args...) }
func (l *envLogger) Error(format string, args ...any) { l.printf("ERROR", format, args...) }

// prefixed tags every line from one component.
type prefixed struct {
	next   Logger
	prefix string
}

// WithPrefix returns a logger that prepends prefix to every message sent to l.
func WithPrefix(l Logger, prefix string) Logger {
	if l == nil {
		return Noop()
	}
	return &prefixed{next: l, prefix: prefix + " "}
}

func (p *prefixed) Debug(format string, args ...any) { p.next.Debug(p.prefix+format, args...) }
func (p *prefixed) Info(format string, args ...any)  { p.next.Info(p.prefix+format, args...) }
func (p *prefixed) Warn(format string, args ...any)  { p.next.Warn(p.prefix+format, args...) }
func (p *prefixed) Error(format string, args ...any) { p.next.Error(p.prefix+format, args...) }

// Printer adapts l to the single-method Printf interface that libraries such
// as gorm log through. Everything arrives at Warn.
func Printer(l Logger) interface{ Printf(string, ...any) } {
	return printer{l}
}

type printer struct{ l Logger }

func (p printer) Printf(format string, args ...any) {
	p.l.Warn(strings.TrimSpace(format), args...)
}

type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for tests. Socket goroutines log into
// it, so read through HasLevel, Contains or Snapshot rather than Messages
// while they may still be running.
type BufferLogger struct {
	mu       sync.Mutex
	Messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{}
}

func (l *BufferLogger) record(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...any) { l.record("debug", format, args...) }
func (l *BufferLogger) Info(format string, args ...any)  { l.record("info", format, args...) }
func (l *BufferLogger) Warn(format string, args ...any)  { l.record("warn", format, args...) }
func (l *BufferLogger) Error(format string, args ...any) { l.record("error", format, args...) }

// Snapshot returns a copy of the captured messages.
func (l *BufferLogger) Snapshot() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogMessage(nil), l.Messages...)
}

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	for _, m := range l.Snapshot() {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Contains returns true if a message at level contains substr.
func (l *BufferLogger) Contains(level, substr string) bool {
	for _, m := range l.Snapshot() {
		if m.Level == level && strings.Contains(m.Message, substr) {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = l.Messages[:0]
}

var defaultLogger = NewEnvLogger("")

// Default returns the process-wide logger.
func Default() Logger {
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l Logger) {
	defaultLogger = l
}
