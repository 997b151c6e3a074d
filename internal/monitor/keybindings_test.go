package monitor

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/store"
	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
)

func modelWithConnections(t *testing.T, f *fixture, n int) Model {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.mgr.Add("gpu", "10.0.0.1", "8765")
		require.NoError(t, err)
	}
	return f.model()
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	handled, cmd := m.HandleKeyMsg(msg)
	require.True(t, handled, "key %q not handled", msg.String())
	return m, cmd
}

func TestNavigationKeys(t *testing.T) {
	f := newFixture(t)
	m := modelWithConnections(t, f, 3)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.selected)
	m, _ = press(t, m, runeKey("j"))
	assert.Equal(t, 2, m.selected)
	m, _ = press(t, m, runeKey("j"))
	assert.Equal(t, 2, m.selected, "stops at the last connection")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyHome})
	assert.Equal(t, 0, m.selected)
	m, _ = press(t, m, runeKey("k"))
	assert.Equal(t, 0, m.selected, "stops at the first connection")
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnd})
	assert.Equal(t, 2, m.selected)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.selected)
}

func TestDetailAndHelpToggle(t *testing.T) {
	f := newFixture(t)
	m := modelWithConnections(t, f, 1)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ViewDetail, m.viewMode)

	m, _ = press(t, m, runeKey("?"))
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.showHelp, "esc closes help first")
	assert.Equal(t, ViewDetail, m.viewMode)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, ViewList, m.viewMode)
}

func TestEnterWithoutConnectionsStaysInList(t *testing.T) {
	m := newFixture(t).model()
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ViewList, m.viewMode)
}

func TestQuitKey(t *testing.T) {
	m := newFixture(t).model()
	m, cmd := press(t, m, runeKey("q"))
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestConnectKeyDialsSelected(t *testing.T) {
	f := newFixture(t)
	m := modelWithConnections(t, f, 2)
	m, _ = press(t, m, runeKey("j"))

	_, cmd := press(t, m, runeKey("c"))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, actionMsg{label: "connect gpu"}, msg)

	require.Eventually(t, func() bool { return f.dialer.Attempts() == 1 }, time.Second, 5*time.Millisecond)
	info, _ := f.mgr.Get(2)
	assert.NotEqual(t, telemetry.StateDisconnected, info.State)
}

func TestConnectAllAndDisconnectAll(t *testing.T) {
	f := newFixture(t)
	m := modelWithConnections(t, f, 2)

	_, cmd := press(t, m, runeKey("a"))
	cmd()
	require.Eventually(t, func() bool {
		return len(f.mgr.Connections()) == 2 &&
			f.mgr.Connections()[0].State == telemetry.StateConnected &&
			f.mgr.Connections()[1].State == telemetry.StateConnected
	}, 2*time.Second, 5*time.Millisecond)

	_, cmd = press(t, m, runeKey("x"))
	cmd()
	for _, c := range f.mgr.Connections() {
		assert.Equal(t, telemetry.StateDisconnected, c.State)
	}
}

func TestLiveKeyToggles(t *testing.T) {
	f := newFixture(t)
	m := modelWithConnections(t, f, 1)
	sock := f.connect(t, 1)
	m, _ = update(t, m, tickMsg(time.Now()))

	info, _ := m.SelectedConnection()
	require.True(t, info.Streaming, "multi mode streams on open")

	_, cmd := press(t, m, runeKey("l"))
	assert.Equal(t, actionMsg{label: "stop live gpu"}, cmd())
	assert.Equal(t, []string{telemetry.CommandLive, telemetry.CommandStop}, sock.Written())

	m, _ = update(t, m, tickMsg(time.Now()))
	_, cmd = press(t, m, runeKey("l"))
	assert.Equal(t, actionMsg{label: "start live gpu"}, cmd())
	assert.Equal(t, []string{telemetry.CommandLive, telemetry.CommandStop, telemetry.CommandLive}, sock.Written())
}

func TestSampleKeyRequiresConnection(t *testing.T) {
	f := newFixture(t)
	m := modelWithConnections(t, f, 1)

	_, cmd := press(t, m, runeKey("r"))
	msg, ok := cmd().(actionMsg)
	require.True(t, ok)
	assert.Equal(t, "refresh gpu", msg.label)
	assert.True(t, gwerrors.IsCode(msg.err, gwerrors.ErrValidation))
}

func TestActionKeysWithoutSelection(t *testing.T) {
	m := newFixture(t).model()
	for _, k := range []string{"c", "d", "l", "r"} {
		_, cmd := press(t, m, runeKey(k))
		assert.Nil(t, cmd, "key %s", k)
	}
}

func TestThemeKeyCyclesAndPersists(t *testing.T) {
	f := newFixture(t)
	m := f.model()
	require.Equal(t, store.ThemeDark, m.Theme())

	m, cmd := press(t, m, runeKey("t"))
	assert.Equal(t, store.ThemeSystem, m.Theme())
	assert.Equal(t, DarkPalette, m.styles.Palette, "system follows the detected dark background")
	require.NotNil(t, cmd)

	m, _ = update(t, m, cmd())
	assert.Equal(t, "Theme set to system", m.Status())

	m, cmd = press(t, m, runeKey("t"))
	assert.Equal(t, store.ThemeLight, m.Theme())
	assert.Equal(t, LightPalette, m.styles.Palette)
	_ = cmd()

	assert.Equal(t, []store.Theme{store.ThemeSystem, store.ThemeLight}, f.themes.saved)
}

func TestThemeSaveFailure(t *testing.T) {
	f := newFixture(t)
	f.themes.err = errors.New("disk full")
	m := f.model()

	m, cmd := press(t, m, runeKey("t"))
	m, _ = update(t, m, cmd())
	assert.True(t, m.statusErr)
	assert.Contains(t, m.Status(), "disk full")
}

func TestThemeWithoutSaver(t *testing.T) {
	m := NewModel(Options{Theme: store.ThemeLight})
	m, cmd := press(t, m, runeKey("t"))
	assert.Nil(t, cmd)
	assert.Equal(t, store.ThemeDark, m.Theme())
	assert.Equal(t, "Theme set to dark", m.Status())
}

func TestUnhandledKey(t *testing.T) {
	m := newFixture(t).model()
	handled, cmd := m.HandleKeyMsg(runeKey("z"))
	assert.False(t, handled)
	assert.Nil(t, cmd)
}

func TestKeyMapHelp(t *testing.T) {
	k := DefaultKeyMap()
	assert.Len(t, k.ShortHelp(), 6)
	total := 0
	for _, col := range k.FullHelp() {
		total += len(col)
	}
	assert.Equal(t, 15, total, "every binding appears in full help")
}
