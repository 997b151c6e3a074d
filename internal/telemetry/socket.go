package telemetry

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Protocol commands sent to the metrics server as text frames.
const (
	CommandSample = "/gpu"
	CommandLive   = "/live"
	CommandStop   = "/stop"
)

// Socket is one open streaming connection. ReadMessage is only called from
// the connection's reader goroutine; Close may be called from anywhere.
type Socket interface {
	ReadMessage() ([]byte, error)
	WriteMessage(text string) error
	Close() error
}

// Dialer opens sockets.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Socket, error)

// Dial calls f(ctx, url).
func (f DialerFunc) Dial(ctx context.Context, url string) (Socket, error) {
	return f(ctx, url)
}

// SocketURL builds the ws:// URL for host and port.
func SocketURL(host, port string) string {
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port), Path: "/"}
	return u.String()
}

// WebSocketDialer dials metrics servers with gorilla/websocket.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// NewWebSocketDialer creates a dialer using the policy's timeouts.
func NewWebSocketDialer(p Policy) *WebSocketDialer {
	p = p.normalized()
	return &WebSocketDialer{
		HandshakeTimeout: p.HandshakeTimeout,
		WriteTimeout:     p.WriteTimeout,
	}
}

// Dial performs the WebSocket handshake.
func (d *WebSocketDialer) Dial(ctx context.Context, rawURL string) (Socket, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
		Proxy:            nil, // local-network use; never route through HTTP_PROXY
	}

	conn, _, err := dialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}

	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &wsSocket{conn: conn, writeTimeout: writeTimeout}, nil
}

// wsSocket wraps a gorilla connection. gorilla allows one concurrent writer,
// so writes are serialized with writeMu.
type wsSocket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	closeOnce    sync.Once
}

func (s *wsSocket) ReadMessage() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	return data, err
}

func (s *wsSocket) WriteMessage(text string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// Close sends a close frame best-effort, then tears down the TCP connection.
func (s *wsSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
		err = s.conn.Close()
	})
	return err
}
