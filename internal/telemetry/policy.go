package telemetry

import "time"

// Mode selects between the single-connection page behavior and the
// multi-connection dashboard behavior.
type Mode string

const (
	ModeMulti  Mode = "multi"
	ModeSingle Mode = "single"
)

// StreamMode selects how a connection asks for samples once open.
type StreamMode string

const (
	// StreamLive sends /live once and receives pushed batches.
	StreamLive StreamMode = "live"
	// StreamPoll sends /gpu on open and again every PollInterval.
	StreamPoll StreamMode = "poll"
)

// Default timings.
const (
	DefaultReconnectDelay   = 2 * time.Second
	DefaultPollInterval     = time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 2 * time.Second
)

// Policy is the manager's behavioral configuration. The two deployment modes
// differ in observable ways (capacity, reconnect storms vs. explicit control),
// so both are kept as named presets rather than merged.
type Policy struct {
	Mode             Mode
	MaxConnections   int // 0 means unlimited
	HistorySize      int
	Stream           StreamMode
	PollInterval     time.Duration
	AutoReconnect    bool
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// MultiPolicy is the multi-connection dashboard: unlimited connections,
// 50-point history, live subscriptions, manual reconnect.
func MultiPolicy() Policy {
	return Policy{
		Mode:             ModeMulti,
		HistorySize:      DefaultHistorySize,
		Stream:           StreamLive,
		PollInterval:     DefaultPollInterval,
		ReconnectDelay:   DefaultReconnectDelay,
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
	}
}

// SinglePolicy is the single-connection page: one connection, 100-point
// history, pull-based sampling, reconnect 2s after every drop.
func SinglePolicy() Policy {
	return Policy{
		Mode:             ModeSingle,
		MaxConnections:   1,
		HistorySize:      SingleHistorySize,
		Stream:           StreamPoll,
		PollInterval:     DefaultPollInterval,
		AutoReconnect:    true,
		ReconnectDelay:   DefaultReconnectDelay,
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
	}
}

// PolicyFor returns the preset for mode, defaulting to MultiPolicy.
func PolicyFor(mode Mode) Policy {
	if mode == ModeSingle {
		return SinglePolicy()
	}
	return MultiPolicy()
}

// normalized fills zero values with defaults.
func (p Policy) normalized() Policy {
	if p.Mode == "" {
		p.Mode = ModeMulti
	}
	if p.HistorySize <= 0 {
		p.HistorySize = DefaultHistorySize
	}
	if p.Stream == "" {
		p.Stream = StreamLive
	}
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.ReconnectDelay <= 0 {
		p.ReconnectDelay = DefaultReconnectDelay
	}
	if p.HandshakeTimeout <= 0 {
		p.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if p.WriteTimeout <= 0 {
		p.WriteTimeout = DefaultWriteTimeout
	}
	if p.MaxConnections < 0 {
		p.MaxConnections = 0
	}
	return p
}
