package telemetry

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
)

// ProbeFailReason categorizes why a probe failed.
type ProbeFailReason int

const (
	ProbeFailUnknown ProbeFailReason = iota
	ProbeFailTimeout
	ProbeFailRefused
	ProbeFailUnreachable
	ProbeFailHandshake
	ProbeFailClosed
)

// String returns a human-readable description of the failure reason.
func (r ProbeFailReason) String() string {
	switch r {
	case ProbeFailTimeout:
		return "timed out"
	case ProbeFailRefused:
		return "connection refused"
	case ProbeFailUnreachable:
		return "host unreachable"
	case ProbeFailHandshake:
		return "not a WebSocket endpoint"
	case ProbeFailClosed:
		return "closed by server"
	default:
		return "unknown error"
	}
}

// ProbeError is a failed probe with a categorized reason.
type ProbeError struct {
	URL    string
	Reason ProbeFailReason
	Cause  error
}

func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("probe %s failed: %s (%v)", e.URL, e.Reason, e.Cause)
	}
	return fmt.Sprintf("probe %s failed: %s", e.URL, e.Reason)
}

func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// ProbeResult is what one /gpu round trip returned.
type ProbeResult struct {
	URL       string
	Latency   time.Duration // dial through first batch
	Greeting  StatusEvent   // first status reply, if the server sent one
	Samples   []Sample
	Malformed int // frames skipped because they failed to decode
}

// Probe dials url, sends /gpu and waits for the first batch. Status replies
// and undecodable frames before the batch are recorded and skipped.
// The whole exchange is bounded by timeout.
func Probe(ctx context.Context, d Dialer, url string, timeout time.Duration) (ProbeResult, error) {
	res := ProbeResult{URL: url}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	sock, err := d.Dial(ctx, url)
	if err != nil {
		return res, categorizeProbeError(url, ctxErr(ctx, err))
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = sock.Close()
		case <-done:
			_ = sock.Close()
		}
	}()

	if err := sock.WriteMessage(CommandSample); err != nil {
		return res, categorizeProbeError(url, ctxErr(ctx, err))
	}

	for {
		payload, err := sock.ReadMessage()
		if err != nil {
			return res, categorizeProbeError(url, ctxErr(ctx, err))
		}

		msg, err := Decode(payload)
		switch {
		case err != nil:
			res.Malformed++
		case msg.Kind == KindStatus:
			if msg.Status.Status == StatusError {
				return res, errors.New(errors.ErrTransport,
					"Server rejected /gpu: "+msg.Status.Message,
					"Check that the server at "+url+" is a GPU metrics server")
			}
			if res.Greeting.Status == "" {
				res.Greeting = msg.Status
			}
		default:
			res.Samples = msg.Samples
			res.Latency = time.Since(start)
			return res, nil
		}
	}
}

// ctxErr prefers the context's error once it has fired, since closing the
// socket on cancel surfaces as an unrelated read error.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func categorizeProbeError(url string, err error) *ProbeError {
	probeErr := &ProbeError{URL: url, Reason: ProbeFailUnknown, Cause: err}

	var netErr net.Error
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		probeErr.Reason = ProbeFailTimeout
		return probeErr
	case stderrors.As(err, &netErr) && netErr.Timeout():
		probeErr.Reason = ProbeFailTimeout
		return probeErr
	case stderrors.Is(err, websocket.ErrBadHandshake):
		probeErr.Reason = ProbeFailHandshake
		return probeErr
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		probeErr.Reason = ProbeFailClosed
		return probeErr
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout"):
		probeErr.Reason = ProbeFailTimeout
	case strings.Contains(errStr, "connection refused"):
		probeErr.Reason = ProbeFailRefused
	case strings.Contains(errStr, "no route to host"),
		strings.Contains(errStr, "network is unreachable"),
		strings.Contains(errStr, "no such host"),
		strings.Contains(errStr, "host is down"):
		probeErr.Reason = ProbeFailUnreachable
	}
	return probeErr
}
