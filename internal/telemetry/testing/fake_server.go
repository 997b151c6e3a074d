package testing

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// GPU is one row the fake server reports, encoded the way the real server
// does it (index as a string, memory in MiB).
type GPU struct {
	Index       int
	Name        string
	Utilization float64
	MemoryUsed  float64
	MemoryTotal float64
	Temperature float64
}

func (g GPU) fields() map[string]any {
	return map[string]any{
		"index":              fmt.Sprintf("%d", g.Index),
		"name":               g.Name,
		"utilization.gpu":    g.Utilization,
		"utilization.memory": 0,
		"memory.total":       g.MemoryTotal,
		"memory.free":        g.MemoryTotal - g.MemoryUsed,
		"memory.used":        g.MemoryUsed,
		"temperature.gpu":    g.Temperature,
	}
}

// FakeServer is a real WebSocket metrics server on a loopback port that
// speaks the /gpu, /live, /stop protocol.
type FakeServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	// LiveInterval controls how often live subscribers receive a batch.
	LiveInterval time.Duration

	mu       sync.Mutex
	gpus     []GPU
	commands []string
	clients  map[*serverConn]struct{}
	accepted int
}

type serverConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	stop    chan struct{}
	live    chan struct{} // non-nil while subscribed
}

func (c *serverConn) send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// NewFakeServer starts a server reporting gpus.
func NewFakeServer(gpus ...GPU) *FakeServer {
	fs := &FakeServer{
		LiveInterval: 20 * time.Millisecond,
		gpus:         gpus,
		clients:      make(map[*serverConn]struct{}),
	}
	fs.srv = httptest.NewServer(http.HandlerFunc(fs.handle))
	return fs
}

// Addr returns host and port of the listener.
func (fs *FakeServer) Addr() (host, port string) {
	host, port, _ = net.SplitHostPort(fs.srv.Listener.Addr().String())
	return host, port
}

// SetGPUs replaces the reported rows.
func (fs *FakeServer) SetGPUs(gpus ...GPU) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.gpus = gpus
}

// Commands returns every command received, across all clients, in order.
func (fs *FakeServer) Commands() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.commands...)
}

// Accepted returns how many sockets were upgraded.
func (fs *FakeServer) Accepted() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.accepted
}

// Clients returns how many sockets are currently open.
func (fs *FakeServer) Clients() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.clients)
}

// DropAll closes every client socket without a close frame.
func (fs *FakeServer) DropAll() {
	fs.mu.Lock()
	clients := make([]*serverConn, 0, len(fs.clients))
	for c := range fs.clients {
		clients = append(clients, c)
	}
	fs.mu.Unlock()

	for _, c := range clients {
		_ = c.ws.Close()
	}
}

// Close drops every client and stops the listener.
func (fs *FakeServer) Close() {
	fs.DropAll()
	fs.srv.Close()
}

func (fs *FakeServer) batch() []byte {
	fs.mu.Lock()
	rows := make([]map[string]any, 0, len(fs.gpus))
	for _, g := range fs.gpus {
		rows = append(rows, g.fields())
	}
	fs.mu.Unlock()

	data, _ := json.Marshal(rows)
	return data
}

func (fs *FakeServer) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := fs.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &serverConn{ws: ws, stop: make(chan struct{})}

	fs.mu.Lock()
	fs.clients[c] = struct{}{}
	fs.accepted++
	fs.mu.Unlock()

	defer func() {
		fs.mu.Lock()
		delete(fs.clients, c)
		fs.mu.Unlock()
		close(c.stop)
		_ = ws.Close()
	}()

	_ = c.send([]byte(`{"status":"connected","help":"/gpu, /live, /stop"}`))

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		cmd := string(data)

		fs.mu.Lock()
		fs.commands = append(fs.commands, cmd)
		fs.mu.Unlock()

		switch cmd {
		case "/gpu":
			_ = c.send(fs.batch())
		case "/live":
			if c.live == nil {
				c.live = make(chan struct{})
				go fs.push(c, c.live)
			}
			_ = c.send([]byte(`{"status":"live","message":"Live updates enabled"}`))
		case "/stop":
			if c.live != nil {
				close(c.live)
				c.live = nil
			}
			_ = c.send([]byte(`{"status":"stopped","message":"Live updates stopped"}`))
		default:
			resp, _ := json.Marshal(map[string]string{"error": "Unknown command: " + cmd})
			_ = c.send(resp)
		}
	}
}

func (fs *FakeServer) push(c *serverConn, live chan struct{}) {
	ticker := time.NewTicker(fs.LiveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-live:
			return
		case <-ticker.C:
			if err := c.send(fs.batch()); err != nil {
				return
			}
		}
	}
}
