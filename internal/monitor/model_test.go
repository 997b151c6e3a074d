package monitor

import (
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/store"
	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
	ttesting "github.com/rileyhilliard/gpuwatch/internal/telemetry/testing"
)

func init() {
	// Force TrueColor output in tests so we can verify ANSI color codes
	lipgloss.SetColorProfile(termenv.TrueColor)
	detectDarkBackground = func() bool { return true }
}

const twoGPUs = `[{"index":"1","name":"RTX 4090","utilization.gpu":80,"memory.used":12288,"memory.total":24576,"temperature.gpu":71},` +
	`{"index":"0","name":"RTX 3090","utilization.gpu":55,"memory.used":6144,"memory.total":24576,"temperature.gpu":63}]`

type fakeThemes struct {
	mu    sync.Mutex
	saved []store.Theme
	err   error
}

func (f *fakeThemes) SaveTheme(t store.Theme) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, t)
	return f.err
}

type fixture struct {
	mgr    *telemetry.Manager
	dialer *ttesting.FakeDialer
	feed   *telemetry.ChannelFeed
	themes *fakeThemes
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dialer: ttesting.NewFakeDialer(),
		feed:   telemetry.NewChannelFeed(256),
		themes: &fakeThemes{},
	}
	f.mgr = telemetry.NewManager(telemetry.MultiPolicy(),
		telemetry.WithDialer(f.dialer),
		telemetry.WithFeed(f.feed),
	)
	t.Cleanup(func() { _ = f.mgr.Close() })
	return f
}

func (f *fixture) model() Model {
	return NewModel(Options{
		Manager: f.mgr,
		Events:  f.feed.Events(),
		Themes:  f.themes,
		Theme:   store.ThemeDark,
	})
}

// connect opens conn id on the fake dialer and waits until the manager reports it connected.
func (f *fixture) connect(t *testing.T, id int) *ttesting.FakeSocket {
	t.Helper()
	before := f.dialer.Attempts()
	require.NoError(t, f.mgr.Connect(id))
	require.Eventually(t, func() bool {
		info, _ := f.mgr.Get(id)
		return info.State == telemetry.StateConnected && f.dialer.Attempts() > before
	}, 2*time.Second, 5*time.Millisecond)
	return f.dialer.Last()
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModelEmpty(t *testing.T) {
	f := newFixture(t)
	m := f.model()

	assert.Empty(t, m.conns)
	assert.Equal(t, store.ThemeDark, m.Theme())
	assert.Equal(t, -1, m.SecondsSinceUpdate())
	assert.Equal(t, DefaultResyncInterval, m.resync)
	assert.Contains(t, m.View(), "No connections configured")
}

func TestNewModelDefaults(t *testing.T) {
	m := NewModel(Options{})
	assert.Equal(t, store.ThemeSystem, m.Theme())
	assert.Equal(t, DefaultThresholds(), m.thresholds)
	assert.NotNil(t, m.Init(), "ticks run even without a feed")
}

func TestModelShowsConnectionsFromManager(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Add("lab", "10.0.0.1", "8765")
	require.NoError(t, err)
	_, err = f.mgr.Add("render", "10.0.0.2", "8765")
	require.NoError(t, err)

	m := f.model()
	require.Len(t, m.conns, 2)

	view := m.View()
	assert.Contains(t, view, "lab")
	assert.Contains(t, view, "render")
	assert.Contains(t, view, "Disconnected")
	assert.Contains(t, view, "2 connections")
	assert.Contains(t, view, "0 connected")
}

func TestModelRendersDevicesAfterResync(t *testing.T) {
	f := newFixture(t)
	info, err := f.mgr.Add("lab", "10.0.0.1", "8765")
	require.NoError(t, err)
	m := f.model()

	sock := f.connect(t, info.ID)
	m, _ = update(t, m, tickMsg(time.Now()))
	assert.Contains(t, m.View(), WaitingForData)

	sock.Push(twoGPUs)
	require.Eventually(t, func() bool {
		snaps, _ := f.mgr.Snapshot(info.ID)
		return len(snaps) == 2
	}, 2*time.Second, 5*time.Millisecond)

	m, cmd := update(t, m, tickMsg(time.Now()))
	require.NotNil(t, cmd)

	devs := m.devices[info.ID]
	require.Len(t, devs, 2)
	assert.Equal(t, 0, devs[0].Index)
	assert.Equal(t, 1, devs[1].Index)

	view := m.View()
	assert.Contains(t, view, "GPU0 RTX 3090")
	assert.Contains(t, view, "GPU1 RTX 4090")
	assert.Contains(t, view, "24.00 GB")
	assert.Contains(t, view, "1 connected")
	assert.NotContains(t, view, WaitingForData)
}

func TestFeedMsgUpsertsDeviceInOrder(t *testing.T) {
	f := newFixture(t)
	m := f.model()

	dev := func(idx int, name string) telemetry.Event {
		return telemetry.Event{
			Kind:         telemetry.EventDevice,
			ConnectionID: 3,
			Time:         time.Now(),
			Device:       telemetry.DeviceSnapshot{Index: idx, Name: name},
		}
	}

	m, cmd := update(t, m, feedMsg(dev(2, "b")))
	assert.NotNil(t, cmd, "feed wait is re-armed")
	m, _ = update(t, m, feedMsg(dev(0, "a")))
	m, _ = update(t, m, feedMsg(dev(2, "b2")))

	devs := m.devices[3]
	require.Len(t, devs, 2)
	assert.Equal(t, "a", devs[0].Name)
	assert.Equal(t, "b2", devs[1].Name)
	assert.Equal(t, 0, m.SecondsSinceUpdate())
}

func TestFeedStatusUpdatesStatusLine(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Add("lab", "10.0.0.1", "8765")
	require.NoError(t, err)
	m := f.model()

	m, _ = update(t, m, feedMsg(telemetry.Event{
		Kind:         telemetry.EventStatus,
		ConnectionID: 1,
		Status:       telemetry.StatusEvent{Status: "live", Message: "Live updates enabled"},
	}))
	assert.Equal(t, "lab: live - Live updates enabled", m.Status())
	assert.False(t, m.statusErr)

	m, _ = update(t, m, feedMsg(telemetry.Event{
		Kind:         telemetry.EventStatus,
		ConnectionID: 1,
		Status:       telemetry.StatusEvent{Status: telemetry.StatusError, Message: "Unknown command: /x"},
	}))
	assert.True(t, m.statusErr)
	assert.Contains(t, m.View(), "Unknown command: /x")
}

func TestFeedStateWithErrorShowsCause(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Add("lab", "10.0.0.1", "8765")
	require.NoError(t, err)
	m := f.model()

	cause := gwerrors.WrapWithCode(errors.New("EOF"), gwerrors.ErrTransport, "Connection to lab lost", "")
	m, _ = update(t, m, feedMsg(telemetry.Event{
		Kind:         telemetry.EventState,
		ConnectionID: 1,
		State:        telemetry.StateDisconnected,
		Err:          cause,
	}))
	assert.True(t, m.statusErr)
	assert.Equal(t, "Connection to lab lost: EOF", m.Status())
}

func TestFeedClosedStopsWaiting(t *testing.T) {
	f := newFixture(t)
	m := f.model()
	m, cmd := update(t, m, feedClosedMsg{})
	assert.Nil(t, cmd)
	assert.Nil(t, m.events)
	assert.Nil(t, waitForEvent(m.events))
}

func TestWaitForEventDeliversEvent(t *testing.T) {
	ch := make(chan telemetry.Event, 1)
	ch <- telemetry.Event{Kind: telemetry.EventAdded, ConnectionID: 9}
	msg := waitForEvent(ch)()
	e, ok := msg.(feedMsg)
	require.True(t, ok)
	assert.Equal(t, 9, e.ConnectionID)

	close(ch)
	assert.Equal(t, feedClosedMsg{}, waitForEvent(ch)())
}

func TestResyncDropsRemovedConnections(t *testing.T) {
	f := newFixture(t)
	a, err := f.mgr.Add("a", "h", "1")
	require.NoError(t, err)
	_, err = f.mgr.Add("b", "h", "2")
	require.NoError(t, err)

	m := f.model()
	m.selected = 1
	m.devices[a.ID] = []telemetry.DeviceSnapshot{{Index: 0}}

	require.NoError(t, f.mgr.Remove(2))
	require.NoError(t, f.mgr.Remove(a.ID))
	m, _ = update(t, m, feedMsg(telemetry.Event{Kind: telemetry.EventRemoved, ConnectionID: a.ID}))

	assert.Empty(t, m.conns)
	assert.Empty(t, m.devices)
	assert.Equal(t, 0, m.selected)
}

func TestActionMsgFailureSetsError(t *testing.T) {
	f := newFixture(t)
	m := f.model()

	m, _ = update(t, m, actionMsg{label: "start live lab", err: gwerrors.NewValidation("lab isn't connected", "")})
	assert.True(t, m.statusErr)
	assert.Equal(t, "start live lab failed: lab isn't connected", m.Status())

	m.setStatus("", false)
	m, _ = update(t, m, actionMsg{label: "connect lab"})
	assert.Empty(t, m.Status())
}

func TestWindowSizeSetsLayout(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{0, LayoutStandard},
		{60, LayoutMinimal},
		{100, LayoutCompact},
		{140, LayoutStandard},
		{200, LayoutWide},
	}
	f := newFixture(t)
	for _, tt := range tests {
		m := f.model()
		if tt.width > 0 {
			m, _ = update(t, m, tea.WindowSizeMsg{Width: tt.width, Height: 40})
			assert.True(t, m.viewportReady)
		}
		assert.Equal(t, tt.want, m.Layout(), "width %d", tt.width)
	}
}

func TestSpinnerTickAdvances(t *testing.T) {
	m := newFixture(t).model()
	m, cmd := update(t, m, spinnerTickMsg(time.Now()))
	assert.Equal(t, 1, m.spinnerFrame)
	assert.NotNil(t, cmd)
}

func TestStatusLineFormatting(t *testing.T) {
	assert.Equal(t, "gpu: connected (commands: /gpu, /live, /stop)",
		statusLine("gpu", telemetry.StatusEvent{Status: "connected", Help: "/gpu, /live, /stop"}))
	assert.Equal(t, "gpu: stopped", statusLine("gpu", telemetry.StatusEvent{Status: "stopped"}))
}
