package monitor

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// ViewMode defines the current display mode of the dashboard.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
)

// KeyMap lists every dashboard binding. It satisfies help.KeyMap.
type KeyMap struct {
	Up            key.Binding
	Down          key.Binding
	First         key.Binding
	Last          key.Binding
	Expand        key.Binding
	Back          key.Binding
	Connect       key.Binding
	Disconnect    key.Binding
	ConnectAll    key.Binding
	DisconnectAll key.Binding
	Live          key.Binding
	Sample        key.Binding
	Theme         key.Binding
	Help          key.Binding
	Quit          key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:            key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "previous connection")),
		Down:          key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next connection")),
		First:         key.NewBinding(key.WithKeys("home"), key.WithHelp("home", "first connection")),
		Last:          key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "last connection")),
		Expand:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "detail view")),
		Back:          key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back / close")),
		Connect:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect")),
		Disconnect:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect")),
		ConnectAll:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "connect all")),
		DisconnectAll: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "disconnect all")),
		Live:          key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "toggle live")),
		Sample:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh sample")),
		Theme:         key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "cycle theme")),
		Help:          key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp is the footer line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Disconnect, k.Live, k.Sample, k.Help, k.Quit}
}

// FullHelp is the help overlay, one column per group.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.First, k.Last, k.Expand, k.Back},
		{k.Connect, k.Disconnect, k.ConnectAll, k.DisconnectAll, k.Live, k.Sample},
		{k.Theme, k.Help, k.Quit},
	}
}

// HandleKeyMsg processes keyboard input. Returns true if the key was handled.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	// Help toggle takes priority
	if key.Matches(msg, m.keys.Help) {
		m.showHelp = !m.showHelp
		return true, nil
	}

	if key.Matches(msg, m.keys.Back) {
		switch {
		case m.showHelp:
			m.showHelp = false
		case m.viewMode == ViewDetail:
			m.viewMode = ViewList
		}
		return true, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return true, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
			m.refreshDetail()
		}
		return true, nil

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.conns)-1 {
			m.selected++
			m.refreshDetail()
		}
		return true, nil

	case key.Matches(msg, m.keys.First):
		m.selected = 0
		m.refreshDetail()
		return true, nil

	case key.Matches(msg, m.keys.Last):
		if len(m.conns) > 0 {
			m.selected = len(m.conns) - 1
			m.refreshDetail()
		}
		return true, nil

	case key.Matches(msg, m.keys.Expand):
		if m.viewMode == ViewList && len(m.conns) > 0 {
			m.viewMode = ViewDetail
			m.refreshDetail()
		}
		return true, nil

	case key.Matches(msg, m.keys.Connect):
		return true, m.onSelected("connect", m.mgr.Connect)

	case key.Matches(msg, m.keys.Disconnect):
		return true, m.onSelected("disconnect", m.mgr.Disconnect)

	case key.Matches(msg, m.keys.ConnectAll):
		mgr := m.mgr
		return true, actionCmd("connect all", func() error {
			mgr.ConnectAll()
			return nil
		})

	case key.Matches(msg, m.keys.DisconnectAll):
		mgr := m.mgr
		return true, actionCmd("disconnect all", func() error {
			mgr.DisconnectAll()
			return nil
		})

	case key.Matches(msg, m.keys.Live):
		info, ok := m.SelectedConnection()
		if !ok {
			return true, nil
		}
		if info.Streaming {
			return true, m.onSelected("stop live", m.mgr.StopLive)
		}
		return true, m.onSelected("start live", m.mgr.StartLive)

	case key.Matches(msg, m.keys.Sample):
		return true, m.onSelected("refresh", m.mgr.RequestSample)

	case key.Matches(msg, m.keys.Theme):
		return true, m.cycleTheme()
	}

	return false, nil
}
