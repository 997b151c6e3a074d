package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// AliasInfo is an SSH config alias offered as a connection host.
type AliasInfo struct {
	Alias    string
	HostName string
}

type aliasItem struct {
	alias AliasInfo
}

func (i aliasItem) Title() string {
	return i.alias.Alias
}

func (i aliasItem) Description() string {
	if i.alias.HostName == "" || i.alias.HostName == i.alias.Alias {
		return "no HostName, dialed as-is"
	}
	return "dials " + i.alias.HostName
}

// Searching matches the alias and the host behind it.
func (i aliasItem) FilterValue() string {
	return strings.TrimSpace(i.alias.Alias + " " + i.alias.HostName)
}

type aliasPickerKeyMap struct {
	Enter  key.Binding
	Manual key.Binding
	Quit   key.Binding
}

var aliasPickerKeys = aliasPickerKeyMap{
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "use host"),
	),
	Manual: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "type a host"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q/esc", "cancel"),
	),
}

// AliasPickerModel lets the user choose a host from ~/.ssh/config.
type AliasPickerModel struct {
	list     list.Model
	selected *AliasInfo
	manual   bool
	quitting bool
}

// NewAliasPickerModel creates a picker over aliases.
func NewAliasPickerModel(aliases []AliasInfo) AliasPickerModel {
	items := make([]list.Item, len(aliases))
	for i, a := range aliases {
		items[i] = aliasItem{alias: a}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorPrimary).
		BorderForeground(ColorSecondary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorMuted)

	l := list.New(items, delegate, 80, 15)
	l.Title = "Pick a host from your SSH config"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Padding(0, 0, 1, 0)
	l.Styles.HelpStyle = MutedStyle()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{aliasPickerKeys.Manual}
	}

	return AliasPickerModel{list: l}
}

// Init implements tea.Model.
func (m AliasPickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m AliasPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, aliasPickerKeys.Enter):
			if item, ok := m.list.SelectedItem().(aliasItem); ok {
				m.selected = &item.alias
			}
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, aliasPickerKeys.Manual):
			m.manual = true
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, aliasPickerKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-2)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m AliasPickerModel) View() string {
	if m.quitting {
		return ""
	}
	return m.list.View() + MutedStyle().Render("\n  Press 'm' to type a host instead")
}

// Selected returns the chosen alias, or nil.
func (m AliasPickerModel) Selected() *AliasInfo {
	return m.selected
}

// ManualEntry reports whether the user asked to type the host.
func (m AliasPickerModel) ManualEntry() bool {
	return m.manual
}

// PickAlias runs the picker on the terminal. It returns the chosen alias,
// or nil with cancelled=false for manual entry, or nil with cancelled=true.
func PickAlias(aliases []AliasInfo) (*AliasInfo, bool, error) {
	return PickAliasWithIO(aliases, os.Stdout, os.Stdin)
}

// PickAliasWithIO runs the picker with custom I/O.
func PickAliasWithIO(aliases []AliasInfo, output io.Writer, input io.Reader) (*AliasInfo, bool, error) {
	if len(aliases) == 0 {
		return nil, false, nil
	}

	p := tea.NewProgram(
		NewAliasPickerModel(aliases),
		tea.WithOutput(output),
		tea.WithInput(input),
	)

	final, err := p.Run()
	if err != nil {
		return nil, false, fmt.Errorf("alias picker: %w", err)
	}

	m, ok := final.(AliasPickerModel)
	switch {
	case !ok:
		return nil, true, nil
	case m.ManualEntry():
		return nil, false, nil
	case m.Selected() == nil:
		return nil, true, nil
	}
	return m.Selected(), false, nil
}
