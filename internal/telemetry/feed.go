package telemetry

import (
	"sync/atomic"
	"time"
)

// EventKind identifies what changed.
type EventKind int

const (
	// EventDevice carries a fresh snapshot of one device after a sample was applied.
	EventDevice EventKind = iota
	// EventState reports a connection lifecycle transition.
	EventState
	// EventStatus forwards a server status reply.
	EventStatus
	// EventAdded reports a connection added to the manager.
	EventAdded
	// EventRemoved reports a connection removed from the manager.
	EventRemoved
)

// String returns a human-readable event kind.
func (k EventKind) String() string {
	switch k {
	case EventDevice:
		return "device"
	case EventState:
		return "state"
	case EventStatus:
		return "status"
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is one Update Feed notification.
type Event struct {
	Kind         EventKind
	ConnectionID int
	Time         time.Time

	// EventDevice
	Device    DeviceSnapshot
	NewDevice bool // first sample for this device index since the last connect

	// EventState
	State     State
	Streaming bool
	Err       error // transport failure that caused a transition to Disconnected

	// EventStatus
	Status StatusEvent
}

// Feed receives notifications from the manager. Publish is called while the
// manager holds its lock, so implementations must not block and must not call
// back into the manager.
type Feed interface {
	Publish(Event)
}

// FeedFunc adapts a function to the Feed interface.
type FeedFunc func(Event)

// Publish calls f(e).
func (f FeedFunc) Publish(e Event) {
	f(e)
}

type discardFeed struct{}

func (discardFeed) Publish(Event) {}

// DefaultFeedBuffer is the ChannelFeed capacity used when none is configured.
const DefaultFeedBuffer = 256

// ChannelFeed delivers events over a bounded channel. When the consumer
// falls behind, new events are dropped and counted rather than stalling
// the socket goroutines; renderers recover by re-reading manager snapshots.
type ChannelFeed struct {
	ch      chan Event
	dropped atomic.Int64
}

// NewChannelFeed creates a feed buffering up to size events.
func NewChannelFeed(size int) *ChannelFeed {
	if size <= 0 {
		size = DefaultFeedBuffer
	}
	return &ChannelFeed{ch: make(chan Event, size)}
}

// Publish enqueues e without blocking.
func (f *ChannelFeed) Publish(e Event) {
	select {
	case f.ch <- e:
	default:
		f.dropped.Add(1)
	}
}

// Events returns the receive side of the feed.
func (f *ChannelFeed) Events() <-chan Event {
	return f.ch
}

// Dropped returns how many events were discarded because the buffer was full.
func (f *ChannelFeed) Dropped() int64 {
	return f.dropped.Load()
}

// MultiFeed fans each event out to several feeds in order.
type MultiFeed []Feed

// Publish forwards e to every feed.
func (mf MultiFeed) Publish(e Event) {
	for _, f := range mf {
		f.Publish(e)
	}
}
