// Package testing provides test doubles for the telemetry package: an
// in-memory socket and dialer, and a real WebSocket metrics server.
package testing

import (
	"context"
	"errors"
	"sync"

	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
)

// ErrSocketClosed is returned by FakeSocket reads after Close.
var ErrSocketClosed = errors.New("fake socket closed")

// FakeSocket is an in-memory telemetry.Socket. Tests push inbound frames
// with Push and inspect outbound commands with Written.
type FakeSocket struct {
	URL string

	mu       sync.Mutex
	written  []string
	closed   bool
	writeErr error

	inbound chan []byte
	failed  chan error
	done    chan struct{}
}

// NewFakeSocket creates an open socket.
func NewFakeSocket(url string) *FakeSocket {
	return &FakeSocket{
		URL:     url,
		inbound: make(chan []byte, 64),
		failed:  make(chan error, 1),
		done:    make(chan struct{}),
	}
}

// ReadMessage blocks until a frame is pushed, the socket fails or it is closed.
func (s *FakeSocket) ReadMessage() ([]byte, error) {
	select {
	case data := <-s.inbound:
		return data, nil
	case err := <-s.failed:
		return nil, err
	case <-s.done:
		return nil, ErrSocketClosed
	}
}

// WriteMessage records text, or returns the error set by FailWrites.
func (s *FakeSocket) WriteMessage(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSocketClosed
	}
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, text)
	return nil
}

// Close unblocks the reader. Safe to call more than once.
func (s *FakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// Push queues an inbound frame.
func (s *FakeSocket) Push(payload string) {
	s.inbound <- []byte(payload)
}

// Fail makes the pending or next read return err, as a dropped connection would.
func (s *FakeSocket) Fail(err error) {
	select {
	case s.failed <- err:
	default:
	}
}

// FailWrites makes every subsequent write return err.
func (s *FakeSocket) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Written returns a copy of the commands written so far.
func (s *FakeSocket) Written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.written...)
}

// Closed reports whether Close was called.
func (s *FakeSocket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// FakeDialer hands out FakeSockets and records every attempt.
type FakeDialer struct {
	mu      sync.Mutex
	sockets []*FakeSocket
	urls    []string
	err     error
	gate    chan struct{}
}

// NewFakeDialer creates a dialer whose dials succeed immediately.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{}
}

// FailWith makes subsequent dials return err; nil restores success.
func (d *FakeDialer) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Hold makes subsequent dials block until Release or context cancellation.
func (d *FakeDialer) Hold() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gate = make(chan struct{})
}

// Release unblocks held dials.
func (d *FakeDialer) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gate != nil {
		close(d.gate)
		d.gate = nil
	}
}

// Dial implements telemetry.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, url string) (telemetry.Socket, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	sock := NewFakeSocket(url)
	d.sockets = append(d.sockets, sock)
	return sock, nil
}

// Attempts returns how many dials were started.
func (d *FakeDialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// URLs returns every dialed URL in order.
func (d *FakeDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// Sockets returns every socket handed out in order.
func (d *FakeDialer) Sockets() []*FakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeSocket(nil), d.sockets...)
}

// Last returns the most recent socket, or nil.
func (d *FakeDialer) Last() *FakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sockets) == 0 {
		return nil
	}
	return d.sockets[len(d.sockets)-1]
}
