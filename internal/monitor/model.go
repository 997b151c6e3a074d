package monitor

import (
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/gpuwatch/internal/errors"
	"github.com/rileyhilliard/gpuwatch/internal/logger"
	"github.com/rileyhilliard/gpuwatch/internal/store"
	"github.com/rileyhilliard/gpuwatch/internal/telemetry"
)

// LayoutMode represents the responsive layout mode based on terminal size.
type LayoutMode int

const (
	// LayoutMinimal is for terminals < 80 columns: latest values only
	LayoutMinimal LayoutMode = iota
	// LayoutCompact is for terminals 80-120 columns: single-row sparklines
	LayoutCompact
	// LayoutStandard is for terminals 120-160 columns: braille graphs
	LayoutStandard
	// LayoutWide is for terminals 160+ columns
	LayoutWide
)

// Width breakpoints for layout modes
const (
	BreakpointCompact  = 80
	BreakpointStandard = 120
	BreakpointWide     = 160
)

const (
	spinnerInterval = 150 * time.Millisecond
	// DefaultResyncInterval is how often every snapshot is re-read from the manager.
	DefaultResyncInterval = time.Second
)

// ThemeSaver persists the theme preference.
type ThemeSaver interface {
	SaveTheme(theme store.Theme) error
}

// Options configures a dashboard Model.
type Options struct {
	Manager    *telemetry.Manager
	Events     <-chan telemetry.Event // usually a ChannelFeed wired into Manager
	Themes     ThemeSaver             // nil keeps theme changes in memory only
	Theme      store.Theme
	Thresholds Thresholds
	Resync     time.Duration
	Logger     logger.Logger
}

// Model is the Bubble Tea model for the GPU dashboard.
type Model struct {
	mgr    *telemetry.Manager
	events <-chan telemetry.Event
	themes ThemeSaver
	log    logger.Logger

	conns   []telemetry.ConnectionInfo
	devices map[int][]telemetry.DeviceSnapshot

	selected   int
	width      int
	height     int
	lastUpdate time.Time
	resync     time.Duration
	now        func() time.Time
	quitting   bool
	viewMode   ViewMode
	showHelp   bool

	theme          store.Theme
	darkBackground bool
	styles         Styles
	thresholds     Thresholds
	keys           KeyMap
	help           help.Model

	// Last status line and whether it reports a failure
	status    string
	statusErr bool

	spinnerFrame int

	detailViewport viewport.Model
	viewportReady  bool
}

// feedMsg carries one event from the manager's feed.
type feedMsg telemetry.Event

// feedClosedMsg means the feed channel was closed.
type feedClosedMsg struct{}

// tickMsg triggers a full resync from the manager.
type tickMsg time.Time

// spinnerTickMsg signals a spinner animation frame update.
type spinnerTickMsg time.Time

// actionMsg reports the outcome of a manager operation started from a key.
type actionMsg struct {
	label string
	err   error
}

// themeSavedMsg reports the outcome of persisting the theme.
type themeSavedMsg struct {
	theme store.Theme
	err   error
}

// NewModel creates a dashboard bound to opts.Manager.
func NewModel(opts Options) Model {
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}
	resync := opts.Resync
	if resync <= 0 {
		resync = DefaultResyncInterval
	}
	theme := opts.Theme
	if theme == "" {
		theme = store.ThemeSystem
	}

	m := Model{
		mgr:            opts.Manager,
		events:         opts.Events,
		themes:         opts.Themes,
		log:            log,
		devices:        make(map[int][]telemetry.DeviceSnapshot),
		resync:         resync,
		now:            time.Now,
		theme:          theme,
		darkBackground: theme != store.ThemeSystem || detectDarkBackground(),
		thresholds:     opts.Thresholds.withDefaults(),
		keys:           DefaultKeyMap(),
	}
	m.applyTheme()
	m.resyncAll()
	return m
}

// Init starts the feed wait, the resync ticker, and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForEvent(m.events),
		m.tickCmd(),
		m.spinnerTickCmd(),
	)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}
		if m.viewMode == ViewDetail && m.viewportReady {
			var cmd tea.Cmd
			m.detailViewport, cmd = m.detailViewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

		// Reserve space for header and footer
		viewportHeight := max(m.height-5, 1)
		if !m.viewportReady {
			m.detailViewport = viewport.New(m.width, viewportHeight)
			m.detailViewport.YPosition = 3
			m.viewportReady = true
		} else {
			m.detailViewport.Width = m.width
			m.detailViewport.Height = viewportHeight
		}
		m.refreshDetail()

	case feedMsg:
		m.apply(telemetry.Event(msg))
		m.refreshDetail()
		return m, waitForEvent(m.events)

	case feedClosedMsg:
		m.events = nil

	case tickMsg:
		m.resyncAll()
		m.refreshDetail()
		return m, m.tickCmd()

	case spinnerTickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % 10000
		return m, m.spinnerTickCmd()

	case actionMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("%s failed: %s", msg.label, errors.ShortMessage(msg.err)), true)
		}

	case themeSavedMsg:
		if msg.err != nil {
			m.setStatus("Couldn't save theme: "+errors.ShortMessage(msg.err), true)
		} else {
			m.setStatus("Theme set to "+string(msg.theme), false)
		}
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	if m.viewMode == ViewDetail {
		return m.renderDetailFrame()
	}
	return m.renderDashboard()
}

// waitForEvent blocks on the feed and turns the next event into a message.
func waitForEvent(events <-chan telemetry.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return feedClosedMsg{}
		}
		return feedMsg(e)
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.resync, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) spinnerTickCmd() tea.Cmd {
	return tea.Tick(spinnerInterval, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}

// actionCmd runs a manager operation off the update loop.
func actionCmd(label string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{label: label, err: fn()}
	}
}

// onSelected runs fn against the selected connection's id.
func (m *Model) onSelected(label string, fn func(id int) error) tea.Cmd {
	info, ok := m.SelectedConnection()
	if !ok {
		return nil
	}
	id := info.ID
	return actionCmd(label+" "+info.Name, func() error {
		return fn(id)
	})
}

// cycleTheme advances system -> light -> dark -> system and persists it.
func (m *Model) cycleTheme() tea.Cmd {
	m.theme = m.theme.Next()
	if m.theme == store.ThemeSystem {
		m.darkBackground = detectDarkBackground()
	}
	m.applyTheme()
	m.refreshDetail()

	saver, theme := m.themes, m.theme
	if saver == nil {
		m.setStatus("Theme set to "+string(theme), false)
		return nil
	}
	return func() tea.Msg {
		return themeSavedMsg{theme: theme, err: saver.SaveTheme(theme)}
	}
}

func (m *Model) applyTheme() {
	p := PaletteFor(m.theme, m.darkBackground)
	m.styles = NewStyles(p)
	width := m.help.Width
	m.help = newHelp(p)
	m.help.Width = width
}

// apply folds one feed event into the model.
func (m *Model) apply(e telemetry.Event) {
	if !e.Time.IsZero() {
		m.lastUpdate = e.Time
	}

	switch e.Kind {
	case telemetry.EventAdded, telemetry.EventRemoved:
		m.resyncAll()

	case telemetry.EventState:
		if info, ok := m.mgr.Get(e.ConnectionID); ok {
			m.replaceConnection(info)
		}
		if snaps, ok := m.mgr.Snapshot(e.ConnectionID); ok {
			m.devices[e.ConnectionID] = snaps
		}
		name := m.connectionName(e.ConnectionID)
		switch {
		case e.Err != nil:
			m.setStatus(errors.ShortMessage(e.Err), true)
		case e.State == telemetry.StateConnected:
			m.setStatus("Connected to "+name, false)
		case e.State == telemetry.StateDisconnected:
			m.setStatus("Disconnected from "+name, false)
		}

	case telemetry.EventDevice:
		m.upsertDevice(e.ConnectionID, e.Device)

	case telemetry.EventStatus:
		if info, ok := m.mgr.Get(e.ConnectionID); ok {
			m.replaceConnection(info)
		}
		m.setStatus(statusLine(m.connectionName(e.ConnectionID), e.Status), e.Status.Status == telemetry.StatusError)
	}
}

// statusLine formats a server status event for the status bar.
func statusLine(name string, st telemetry.StatusEvent) string {
	line := name + ": " + st.Status
	switch {
	case st.Message != "":
		line += " - " + st.Message
	case st.Help != "":
		line += " (commands: " + st.Help + ")"
	}
	return line
}

// resyncAll re-reads every connection and snapshot from the manager.
func (m *Model) resyncAll() {
	if m.mgr == nil {
		return
	}
	m.conns = m.mgr.Connections()

	live := make(map[int]bool, len(m.conns))
	for _, c := range m.conns {
		live[c.ID] = true
		if snaps, ok := m.mgr.Snapshot(c.ID); ok {
			m.devices[c.ID] = snaps
		}
	}
	for id := range m.devices {
		if !live[id] {
			delete(m.devices, id)
		}
	}

	if m.selected >= len(m.conns) {
		m.selected = len(m.conns) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	if len(m.conns) == 0 {
		m.viewMode = ViewList
	}
}

func (m *Model) replaceConnection(info telemetry.ConnectionInfo) {
	for i := range m.conns {
		if m.conns[i].ID == info.ID {
			m.conns[i] = info
			return
		}
	}
	m.conns = append(m.conns, info)
}

// upsertDevice replaces one device snapshot, keeping devices ordered by index.
func (m *Model) upsertDevice(id int, snap telemetry.DeviceSnapshot) {
	devs := m.devices[id]
	i, found := slices.BinarySearchFunc(devs, snap.Index, func(d telemetry.DeviceSnapshot, idx int) int {
		return d.Index - idx
	})
	if found {
		devs[i] = snap
	} else {
		devs = slices.Insert(devs, i, snap)
	}
	m.devices[id] = devs
}

func (m *Model) connectionName(id int) string {
	for _, c := range m.conns {
		if c.ID == id {
			return c.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

// refreshDetail re-renders the detail viewport when it is showing.
func (m *Model) refreshDetail() {
	if m.viewMode != ViewDetail || !m.viewportReady {
		return
	}
	m.detailViewport.SetContent(m.renderDetailContent())
}

// SelectedConnection returns the highlighted connection.
func (m Model) SelectedConnection() (telemetry.ConnectionInfo, bool) {
	if m.selected < 0 || m.selected >= len(m.conns) {
		return telemetry.ConnectionInfo{}, false
	}
	return m.conns[m.selected], true
}

// ConnectedCount returns how many connections are open.
func (m Model) ConnectedCount() int {
	n := 0
	for _, c := range m.conns {
		if c.State == telemetry.StateConnected {
			n++
		}
	}
	return n
}

// Theme returns the active theme preference.
func (m Model) Theme() store.Theme {
	return m.theme
}

// Status returns the status line text.
func (m Model) Status() string {
	return m.status
}

// SecondsSinceUpdate returns seconds since the last feed event, or -1 before any.
func (m Model) SecondsSinceUpdate() int {
	if m.lastUpdate.IsZero() {
		return -1
	}
	return int(m.now().Sub(m.lastUpdate).Seconds())
}

// Layout returns the layout mode for the current width.
func (m Model) Layout() LayoutMode {
	switch {
	case m.width == 0:
		return LayoutStandard
	case m.width < BreakpointCompact:
		return LayoutMinimal
	case m.width < BreakpointStandard:
		return LayoutCompact
	case m.width < BreakpointWide:
		return LayoutStandard
	default:
		return LayoutWide
	}
}
