package telemetry

import (
	"context"
	"time"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
)

// State is a connection's lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the display label used by renderers.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Connection is one configured metrics server. All fields are guarded by the
// owning Manager's mutex; the transition methods below must be called with it held.
type Connection struct {
	ID   int
	Name string
	Host string
	Port string

	m        *Manager
	registry *Registry

	state     State
	streaming bool
	socket    Socket
	dialing   *dialAttempt
	pollStop  chan struct{}

	reconnectTimer *time.Timer
	reconnectGen   int

	lastStatus  StatusEvent
	lastErr     error
	connectedAt time.Time
}

// dialAttempt identifies one in-flight dial so a late completion for a
// cancelled or superseded attempt can be recognized and discarded.
type dialAttempt struct {
	cancel context.CancelFunc
}

// ConnectionInfo is a read-only view of a connection.
type ConnectionInfo struct {
	ID          int
	Name        string
	Host        string
	Port        string
	URL         string
	State       State
	Streaming   bool
	Devices     int
	LastStatus  StatusEvent
	LastError   string
	ConnectedAt time.Time
}

// Record returns the persisted identity of the connection.
func (ci ConnectionInfo) Record() Record {
	return Record{ID: ci.ID, Name: ci.Name, Host: ci.Host, Port: ci.Port}
}

func newConnection(m *Manager, rec Record) *Connection {
	return &Connection{
		ID:       rec.ID,
		Name:     rec.Name,
		Host:     rec.Host,
		Port:     rec.Port,
		m:        m,
		registry: NewRegistry(m.policy.HistorySize),
		state:    StateDisconnected,
	}
}

func (c *Connection) url() string {
	return SocketURL(c.m.resolve(c.Host), c.Port)
}

func (c *Connection) info() ConnectionInfo {
	ci := ConnectionInfo{
		ID:          c.ID,
		Name:        c.Name,
		Host:        c.Host,
		Port:        c.Port,
		URL:         c.url(),
		State:       c.state,
		Streaming:   c.streaming,
		Devices:     c.registry.Len(),
		LastStatus:  c.lastStatus,
		ConnectedAt: c.connectedAt,
	}
	if c.lastErr != nil {
		ci.LastError = errors.ShortMessage(c.lastErr)
	}
	return ci
}

func (c *Connection) record() Record {
	return Record{ID: c.ID, Name: c.Name, Host: c.Host, Port: c.Port}
}

// connect starts an asynchronous dial. It is a no-op unless the connection
// is disconnected, so repeated requests never open a second socket.
func (c *Connection) connect() {
	if c.state != StateDisconnected {
		return
	}
	c.cancelReconnect()

	ctx, cancel := context.WithTimeout(c.m.ctx, c.m.policy.HandshakeTimeout)
	attempt := &dialAttempt{cancel: cancel}
	c.dialing = attempt
	c.lastErr = nil
	c.setState(StateConnecting, nil)

	target := c.url()
	c.m.metrics.dialed()
	c.m.log.Debug("dialing %s (connection %d)", target, c.ID)

	c.m.wg.Add(1)
	go c.m.dial(ctx, c, attempt, target)
}

// opened installs a freshly dialed socket and requests data according to
// the stream mode.
func (c *Connection) opened(sock Socket) {
	c.dialing = nil
	c.socket = sock
	c.connectedAt = time.Now()
	c.registry.Clear()
	c.setState(StateConnected, nil)

	c.m.wg.Add(1)
	go c.m.readLoop(c, sock)

	switch c.m.policy.Stream {
	case StreamPoll:
		if !c.send(CommandSample) {
			return
		}
		c.startPoll()
	default:
		if !c.send(CommandLive) {
			return
		}
		c.streaming = true
		c.publishState(nil)
	}
}

// failed tears down after a transport failure and schedules a reconnect
// when the policy asks for one.
func (c *Connection) failed(err error) {
	wrapped := errors.WrapWithCode(err, errors.ErrTransport,
		"Connection to "+c.Name+" lost",
		"Check that the metrics server is running on "+c.url())
	c.m.metrics.transportFailed(c.ID)
	c.m.log.Warn("connection %d (%s): %v", c.ID, c.Name, err)

	c.teardown(false)
	c.lastErr = wrapped
	c.setState(StateDisconnected, wrapped)

	if c.m.policy.AutoReconnect && !c.m.closed {
		c.scheduleReconnect()
	}
}

// disconnect is the user-initiated close. A pending auto-reconnect is
// cancelled as well.
func (c *Connection) disconnect() {
	c.cancelReconnect()
	if c.state == StateDisconnected {
		return
	}
	c.teardown(true)
	c.setState(StateDisconnected, nil)
}

// teardown releases the dial, poll ticker and socket. When polite is set
// and the connection is streaming, /stop is sent before closing.
func (c *Connection) teardown(polite bool) {
	if c.dialing != nil {
		c.dialing.cancel()
		c.dialing = nil
	}
	c.stopPoll()
	if c.socket != nil {
		if polite && c.streaming {
			if err := c.socket.WriteMessage(CommandStop); err != nil {
				c.m.log.Debug("connection %d: /stop not delivered: %v", c.ID, err)
			}
		}
		if err := c.socket.Close(); err != nil {
			c.m.log.Debug("connection %d: close: %v", c.ID, err)
		}
		c.socket = nil
	}
	c.streaming = false
}

// send writes a command on the open socket. A write failure is a transport
// failure; send returns false when the connection was torn down.
func (c *Connection) send(cmd string) bool {
	if c.socket == nil {
		return false
	}
	if err := c.socket.WriteMessage(cmd); err != nil {
		c.failed(err)
		return false
	}
	return true
}

func (c *Connection) startPoll() {
	c.stopPoll()
	stop := make(chan struct{})
	c.pollStop = stop

	interval := c.m.policy.PollInterval
	c.m.wg.Add(1)
	go func() {
		defer c.m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.m.pollTick(c, stop)
			}
		}
	}()
}

func (c *Connection) stopPoll() {
	if c.pollStop != nil {
		close(c.pollStop)
		c.pollStop = nil
	}
}

func (c *Connection) scheduleReconnect() {
	c.cancelReconnect()
	gen := c.reconnectGen
	delay := c.m.policy.ReconnectDelay
	c.m.log.Debug("connection %d: reconnecting in %s", c.ID, delay)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.m.reconnectFired(c, gen)
	})
}

// cancelReconnect stops any pending timer; bumping the generation makes a
// callback that already fired a no-op.
func (c *Connection) cancelReconnect() {
	c.reconnectGen++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// handleFrame decodes one inbound text frame and applies it.
func (c *Connection) handleFrame(payload []byte) {
	c.m.metrics.frameReceived(c.ID)

	msg, err := Decode(payload)
	if err != nil {
		c.m.metrics.decodeFailed(c.ID)
		c.m.log.Warn("connection %d: dropping frame: %v", c.ID, err)
		return
	}

	switch msg.Kind {
	case KindStatus:
		c.applyStatus(msg.Status)
	case KindBatch:
		for _, s := range msg.Samples {
			dev, isNew := c.registry.Upsert(s)
			c.m.metrics.sampleApplied(c.ID)
			c.m.publish(Event{
				Kind:         EventDevice,
				ConnectionID: c.ID,
				Device:       dev.Snapshot(),
				NewDevice:    isNew,
			})
		}
	}
}

func (c *Connection) applyStatus(st StatusEvent) {
	c.lastStatus = st
	switch st.Status {
	case "live":
		c.streaming = true
	case "stopped":
		c.streaming = false
	case StatusError:
		c.m.log.Warn("connection %d: server error: %s", c.ID, st.Message)
	default:
		c.m.log.Debug("connection %d: status %q", c.ID, st.Status)
	}
	c.m.publish(Event{Kind: EventStatus, ConnectionID: c.ID, Status: st, Streaming: c.streaming})
}

func (c *Connection) setState(s State, cause error) {
	c.state = s
	c.m.updateStateMetrics()
	c.publishState(cause)
}

func (c *Connection) publishState(cause error) {
	c.m.publish(Event{
		Kind:         EventState,
		ConnectionID: c.ID,
		State:        c.state,
		Streaming:    c.streaming,
		Err:          cause,
	})
}
