package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStylesRender(t *testing.T) {
	for _, style := range []lipgloss.Style{SuccessStyle(), ErrorStyle(), WarningStyle(), MutedStyle()} {
		assert.Contains(t, style.Render("text"), "text")
	}
	assert.Len(t, GradientColors, 4)
}

func TestSpinnerSuccess(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("Connecting to lab")
	s.SetOutput(&buf)

	assert.Equal(t, SpinnerPending, s.State())
	assert.Zero(t, s.Elapsed())

	s.Start()
	assert.Equal(t, SpinnerInProgress, s.State())
	s.Success()

	assert.Equal(t, SpinnerSuccess, s.State())
	out := buf.String()
	assert.Contains(t, out, SymbolSuccess)
	assert.Contains(t, out, "Connecting to lab")
	assert.True(t, strings.HasSuffix(out, "s\n"))
}

func TestSpinnerFail(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("Connecting")
	s.SetOutput(&buf)
	s.Start()
	s.Fail()
	s.Fail()

	assert.Equal(t, SpinnerFailed, s.State())
	assert.Equal(t, 1, strings.Count(buf.String(), SymbolFail), "finishing twice prints once")
}

func TestSpinnerFinishBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner("idle")
	s.SetOutput(&buf)
	s.Success()
	assert.Empty(t, buf.String())
	assert.Equal(t, SpinnerPending, s.State())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.05s", formatDuration(50*time.Millisecond))
	assert.Equal(t, "1.2s", formatDuration(1200*time.Millisecond))
}

func TestRenderConnectionTable(t *testing.T) {
	assert.Empty(t, RenderConnectionTable(nil))

	out := RenderConnectionTable([]ConnectionRow{
		{ID: 1, Name: "lab", URL: "ws://10.0.0.1:8765/"},
		{ID: 2, Name: "rig", URL: "ws://rig:8765/"},
	})
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "ws://10.0.0.1:8765/")
	assert.NotContains(t, out, "STATUS", "no status column without checks")

	out = RenderConnectionTable([]ConnectionRow{
		{ID: 1, Name: "lab", URL: "ws://lab:8765/", Checked: true, Connected: true, Detail: "2 GPUs"},
		{ID: 2, Name: "rig", URL: "ws://rig:8765/", Checked: true, Detail: "connection refused"},
	})
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "up")
	assert.Contains(t, out, "down")
	assert.Contains(t, out, "connection refused")
}

func TestAliasItem(t *testing.T) {
	item := aliasItem{alias: AliasInfo{Alias: "gpu-box", HostName: "10.0.0.7"}}
	assert.Equal(t, "gpu-box", item.Title())
	assert.Equal(t, "dials 10.0.0.7", item.Description())
	assert.Equal(t, "gpu-box 10.0.0.7", item.FilterValue())

	bare := aliasItem{alias: AliasInfo{Alias: "rig"}}
	assert.Contains(t, bare.Description(), "as-is")
	assert.Equal(t, "rig", bare.FilterValue())
}

func TestAliasPickerKeys(t *testing.T) {
	aliases := []AliasInfo{{Alias: "a", HostName: "1.1.1.1"}, {Alias: "b"}}

	m := NewAliasPickerModel(aliases)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	picked := next.(AliasPickerModel)
	require.NotNil(t, picked.Selected())
	assert.Equal(t, "a", picked.Selected().Alias)
	assert.Empty(t, picked.View())

	next, _ = NewAliasPickerModel(aliases).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	assert.True(t, next.(AliasPickerModel).ManualEntry())

	next, _ = NewAliasPickerModel(aliases).Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, next.(AliasPickerModel).Selected())
	assert.False(t, next.(AliasPickerModel).ManualEntry())
}

func TestPickAliasWithoutAliases(t *testing.T) {
	sel, cancelled, err := PickAliasWithIO(nil, &bytes.Buffer{}, strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, sel)
	assert.False(t, cancelled, "no aliases goes straight to manual entry")
}
