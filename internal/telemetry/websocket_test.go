package telemetry_test

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
	ttesting "github.com/rileyhilliard/gpuwatch/internal/telemetry/testing"
)

func newServerManager(t *testing.T, policy telemetry.Policy) (*telemetry.Manager, *telemetry.ChannelFeed) {
	t.Helper()
	feed := telemetry.NewChannelFeed(4096)
	m := telemetry.NewManager(policy, telemetry.WithFeed(feed))
	t.Cleanup(func() { _ = m.Close() })
	return m, feed
}

func TestWebSocketLiveStream(t *testing.T) {
	srv := ttesting.NewFakeServer(ttesting.GPU{
		Index: 0, Name: "Card A", Utilization: 55, MemoryUsed: 2048, MemoryTotal: 8192, Temperature: 63,
	})
	defer srv.Close()

	m, _ := newServerManager(t, telemetry.MultiPolicy())
	host, port := srv.Addr()
	info, err := m.Add("bench", host, port)
	require.NoError(t, err)

	require.NoError(t, m.Connect(info.ID))

	require.Eventually(t, func() bool {
		snaps, _ := m.Snapshot(info.ID)
		return len(snaps) == 1 && len(snaps[0].Utilization) >= 2
	}, waitFor, tick)

	snaps, _ := m.Snapshot(info.ID)
	assert.Equal(t, "Card A", snaps[0].Name)
	assert.Equal(t, 55.0, snaps[0].Utilization[0])
	assert.Equal(t, 25.0, snaps[0].Memory[0])
	assert.Equal(t, 63.0, snaps[0].Temperature[0])
	assert.Equal(t, 8.0, snaps[0].TotalMemoryGB())

	require.NoError(t, m.Disconnect(info.ID))
	require.Eventually(t, func() bool {
		return srv.Clients() == 0
	}, waitFor, tick)
	assert.Equal(t, []string{"/live", "/stop"}, srv.Commands())
}

func TestWebSocketPollWithReconnect(t *testing.T) {
	srv := ttesting.NewFakeServer(
		ttesting.GPU{Index: 0, Name: "Card A", MemoryTotal: 8192},
		ttesting.GPU{Index: 1, Name: "Card B", MemoryTotal: 16384},
	)
	defer srv.Close()

	p := telemetry.SinglePolicy()
	p.PollInterval = 10 * time.Millisecond
	p.ReconnectDelay = 20 * time.Millisecond
	m, _ := newServerManager(t, p)
	host, port := srv.Addr()
	info, err := m.Add("bench", host, port)
	require.NoError(t, err)

	require.NoError(t, m.Connect(info.ID))
	require.Eventually(t, func() bool {
		snaps, _ := m.Snapshot(info.ID)
		return len(snaps) == 2
	}, waitFor, tick)

	srv.DropAll()

	require.Eventually(t, func() bool {
		return srv.Accepted() == 2
	}, waitFor, tick, "single mode reconnects after a drop")
	require.Eventually(t, func() bool {
		got, _ := m.Get(info.ID)
		snaps, _ := m.Snapshot(info.ID)
		return got.State == telemetry.StateConnected && len(snaps) == 2
	}, waitFor, tick)

	assert.False(t, slices.Contains(srv.Commands(), "/live"))
}

func TestWebSocketDialRefused(t *testing.T) {
	srv := ttesting.NewFakeServer()
	host, port := srv.Addr()
	srv.Close()

	m, feed := newServerManager(t, telemetry.MultiPolicy())
	info, err := m.Add("gone", host, port)
	require.NoError(t, err)
	require.NoError(t, m.Connect(info.ID))

	deadline := time.After(waitFor)
	for {
		select {
		case e := <-feed.Events():
			if e.Kind == telemetry.EventState && e.State == telemetry.StateDisconnected && e.Err != nil {
				got, _ := m.Get(info.ID)
				assert.NotEmpty(t, got.LastError)
				return
			}
		case <-deadline:
			t.Fatal("dial to a closed port never failed")
		}
	}
}

func TestSocketURL(t *testing.T) {
	assert.Equal(t, "ws://127.0.0.1:8765/", telemetry.SocketURL("127.0.0.1", "8765"))
	assert.Equal(t, "ws://[::1]:8765/", telemetry.SocketURL("::1", "8765"))
}
