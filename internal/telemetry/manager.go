package telemetry

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/logger"
)

// Record is the persisted identity of a connection.
type Record struct {
	ID   int    `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Host string `yaml:"host" json:"host"`
	Port string `yaml:"port" json:"port"`
}

// Persister saves the connection list and id counter after every add or remove.
type Persister interface {
	SaveConnections(records []Record, counter int) error
}

// HostResolver maps a user-entered host to the address actually dialed.
type HostResolver func(host string) string

// Manager owns the connection set. Every mutation, whether from the API,
// a socket goroutine, a poll tick or a reconnect timer, runs under mu, which
// makes it the single serialized event queue for the whole system.
type Manager struct {
	mu sync.Mutex
	wg sync.WaitGroup

	policy    Policy
	dialer    Dialer
	feed      Feed
	persister Persister
	resolver  HostResolver
	metrics   *Metrics
	log       logger.Logger

	conns  map[int]*Connection
	order  []int
	nextID int

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer overrides the socket dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithFeed sets the Update Feed.
func WithFeed(f Feed) Option {
	return func(m *Manager) { m.feed = f }
}

// WithPersister sets where the connection list is saved.
func WithPersister(p Persister) Option {
	return func(m *Manager) { m.persister = p }
}

// WithResolver sets the host resolver used when building socket URLs.
func WithResolver(r HostResolver) Option {
	return func(m *Manager) { m.resolver = r }
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(mt *Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates an empty manager.
func NewManager(policy Policy, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		policy: policy.normalized(),
		feed:   discardFeed{},
		log:    logger.Noop(),
		conns:  make(map[int]*Connection),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = NewWebSocketDialer(m.policy)
	}
	if m.feed == nil {
		m.feed = discardFeed{}
	}
	m.updateStateMetrics()
	return m
}

// Policy returns the effective policy.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Add registers a new connection in the disconnected state, assigns it a
// fresh id and persists the list. Nothing is added if persisting fails.
func (m *Manager) Add(name, host, port string) (ConnectionInfo, error) {
	name = strings.TrimSpace(name)
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	if name == "" || host == "" || port == "" {
		return ConnectionInfo{}, errors.NewValidation(
			"Name, host and port are all required",
			"Fill in every field, e.g. name=workstation host=192.168.1.20 port=8765")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return ConnectionInfo{}, err
	}
	if limit := m.policy.MaxConnections; limit > 0 && len(m.conns) >= limit {
		return ConnectionInfo{}, errors.NewValidation(
			fmt.Sprintf("Connection limit reached (%d)", limit),
			"Remove an existing connection or switch to multi mode")
	}

	id := m.nextID + 1
	c := newConnection(m, Record{ID: id, Name: name, Host: host, Port: port})

	order := append(slices.Clone(m.order), id)
	if err := m.persist(order, map[int]*Connection{id: c}, id); err != nil {
		return ConnectionInfo{}, err
	}

	m.nextID = id
	m.conns[id] = c
	m.order = order
	m.log.Info("added connection %d (%s at %s:%s)", id, name, host, port)
	m.updateStateMetrics()
	m.publish(Event{Kind: EventAdded, ConnectionID: id, State: StateDisconnected})
	return c.info(), nil
}

// Remove closes the connection if open, discards it and its devices, and
// persists the list. The connection is removed even when persisting fails.
func (m *Manager) Remove(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.lookup(id)
	if err != nil {
		return err
	}

	c.disconnect()
	c.registry.Clear()
	delete(m.conns, id)
	m.order = slices.DeleteFunc(m.order, func(v int) bool { return v == id })
	m.metrics.forget(id)
	m.updateStateMetrics()
	m.log.Info("removed connection %d (%s)", id, c.Name)
	m.publish(Event{Kind: EventRemoved, ConnectionID: id, State: StateDisconnected})

	return m.persist(m.order, nil, m.nextID)
}

// Connect starts dialing. It returns immediately; progress is reported on
// the feed. Connecting an already connecting or connected connection is a no-op.
func (m *Manager) Connect(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return err
	}
	c, err := m.lookup(id)
	if err != nil {
		return err
	}
	c.connect()
	return nil
}

// Disconnect closes the socket (sending /stop first when streaming) and
// cancels any pending reconnect. Disconnecting a disconnected connection is a no-op.
func (m *Manager) Disconnect(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.lookup(id)
	if err != nil {
		return err
	}
	c.disconnect()
	return nil
}

// ConnectAll connects every disconnected connection.
func (m *Manager) ConnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	for _, id := range m.order {
		m.conns[id].connect()
	}
}

// DisconnectAll disconnects every connection.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		m.conns[id].disconnect()
	}
}

// StartLive subscribes an open connection to pushed batches.
func (m *Manager) StartLive(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.lookupConnected(id)
	if err != nil {
		return err
	}
	if c.streaming {
		return nil
	}
	c.stopPoll()
	if c.send(CommandLive) {
		c.streaming = true
		c.publishState(nil)
	}
	return nil
}

// StopLive ends a live subscription. Under the poll stream mode the poll
// ticker resumes.
func (m *Manager) StopLive(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.lookupConnected(id)
	if err != nil {
		return err
	}
	if !c.streaming {
		return nil
	}
	if !c.send(CommandStop) {
		return nil
	}
	c.streaming = false
	if m.policy.Stream == StreamPoll {
		c.startPoll()
	}
	c.publishState(nil)
	return nil
}

// RequestSample asks an open connection for one batch.
func (m *Manager) RequestSample(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.lookupConnected(id)
	if err != nil {
		return err
	}
	c.send(CommandSample)
	return nil
}

// Restore replaces the connection set with saved records, all disconnected.
// The id counter becomes the larger of counter and the highest restored id.
// Records beyond MaxConnections, duplicates and records with empty fields are skipped.
func (m *Manager) Restore(records []Record, counter int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return err
	}

	for _, id := range m.order {
		c := m.conns[id]
		c.disconnect()
		m.metrics.forget(id)
	}
	m.conns = make(map[int]*Connection)
	m.order = nil

	next := max(counter, 0)
	for _, rec := range records {
		if rec.ID <= 0 || rec.Name == "" || rec.Host == "" || rec.Port == "" {
			m.log.Warn("skipping invalid saved connection %+v", rec)
			continue
		}
		if _, dup := m.conns[rec.ID]; dup {
			m.log.Warn("skipping duplicate saved connection id %d", rec.ID)
			continue
		}
		if limit := m.policy.MaxConnections; limit > 0 && len(m.conns) >= limit {
			m.log.Warn("skipping saved connection %d: limit of %d reached", rec.ID, limit)
			continue
		}
		m.conns[rec.ID] = newConnection(m, rec)
		m.order = append(m.order, rec.ID)
		next = max(next, rec.ID)
	}
	m.nextID = next
	m.updateStateMetrics()

	for _, id := range m.order {
		m.publish(Event{Kind: EventAdded, ConnectionID: id, State: StateDisconnected})
	}
	m.log.Debug("restored %d connections (counter %d)", len(m.order), m.nextID)
	return nil
}

// Counter returns the last id handed out.
func (m *Manager) Counter() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextID
}

// Len returns the number of connections.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Connections returns every connection in insertion order.
func (m *Manager) Connections() []ConnectionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ConnectionInfo, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.conns[id].info())
	}
	return out
}

// Get returns one connection's view.
func (m *Manager) Get(id int) (ConnectionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[id]
	if !ok {
		return ConnectionInfo{}, false
	}
	return c.info(), true
}

// Snapshot returns copies of a connection's devices sorted by index.
func (m *Manager) Snapshot(id int) ([]DeviceSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[id]
	if !ok {
		return nil, false
	}
	return c.registry.Snapshots(), true
}

// Records returns the persisted form of every connection in insertion order.
func (m *Manager) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordsFor(m.order, nil)
}

// Close disconnects everything, stops all timers and waits for socket
// goroutines to exit. The manager rejects further connects.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	for _, id := range m.order {
		m.conns[id].disconnect()
	}
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

// dial runs on its own goroutine and hands the result back to the queue.
func (m *Manager) dial(ctx context.Context, c *Connection, attempt *dialAttempt, target string) {
	defer m.wg.Done()

	sock, err := m.dialer.Dial(ctx, target)
	attempt.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if c.dialing != attempt || m.conns[c.ID] != c || m.closed {
		// Cancelled, removed or superseded while dialing.
		if sock != nil {
			_ = sock.Close()
		}
		return
	}
	if err != nil {
		c.dialing = nil
		c.failed(err)
		return
	}
	c.opened(sock)
}

// readLoop delivers frames from one socket in arrival order. Events from a
// socket the connection no longer owns are ignored.
func (m *Manager) readLoop(c *Connection, sock Socket) {
	defer m.wg.Done()

	for {
		payload, err := sock.ReadMessage()

		m.mu.Lock()
		if c.socket != sock || m.conns[c.ID] != c {
			m.mu.Unlock()
			return
		}
		if err != nil {
			c.failed(err)
			m.mu.Unlock()
			return
		}
		c.handleFrame(payload)
		m.mu.Unlock()
	}
}

func (m *Manager) pollTick(c *Connection, stop chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.pollStop != stop || c.state != StateConnected {
		return
	}
	c.send(CommandSample)
}

func (m *Manager) reconnectFired(c *Connection, gen int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.reconnectGen != gen || m.conns[c.ID] != c || m.closed {
		return
	}
	c.reconnectTimer = nil
	c.connect()
}

func (m *Manager) lookup(id int) (*Connection, error) {
	c, ok := m.conns[id]
	if !ok {
		return nil, errors.NewValidation(
			fmt.Sprintf("No connection with id %d", id),
			"Run 'gpuwatch conn list' to see configured connections")
	}
	return c, nil
}

func (m *Manager) lookupConnected(id int) (*Connection, error) {
	c, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	if c.state != StateConnected {
		return nil, errors.NewValidation(
			fmt.Sprintf("Connection %q is %s", c.Name, c.state),
			"Connect it first")
	}
	return c, nil
}

func (m *Manager) checkOpen() error {
	if m.closed {
		return errors.New(errors.ErrValidation, "Connection manager is shut down", "")
	}
	return nil
}

func (m *Manager) resolve(host string) string {
	if m.resolver == nil {
		return host
	}
	if resolved := m.resolver(host); resolved != "" {
		return resolved
	}
	return host
}

func (m *Manager) publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	m.feed.Publish(e)
}

func (m *Manager) updateStateMetrics() {
	if m.metrics == nil {
		return
	}
	counts := make(map[State]int, 3)
	for _, c := range m.conns {
		counts[c.state]++
	}
	m.metrics.setStates(counts)
}

// recordsFor builds records for ids, looking in extra before m.conns.
func (m *Manager) recordsFor(ids []int, extra map[int]*Connection) []Record {
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		c, ok := extra[id]
		if !ok {
			c = m.conns[id]
		}
		out = append(out, c.record())
	}
	return out
}

func (m *Manager) persist(ids []int, extra map[int]*Connection, counter int) error {
	if m.persister == nil {
		return nil
	}
	if err := m.persister.SaveConnections(m.recordsFor(ids, extra), counter); err != nil {
		m.log.Error("saving connections: %v", err)
		if errors.IsCode(err, errors.ErrStore) {
			return err
		}
		return errors.WrapWithCode(err, errors.ErrStore,
			"Couldn't save connections",
			"Check that the store path is writable")
	}
	return nil
}
