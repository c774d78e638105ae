package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/nodeboard/pkg/sshutil"
)

// ErrPickCancelled is returned when the user quits the host picker.
var ErrPickCancelled = errors.New("host selection cancelled")

// hostItem is one ssh_config alias. The item with an empty alias stands for
// typing a host by hand.
type hostItem struct {
	host  sshutil.HostEntry
	keyed bool
}

func (i hostItem) Title() string {
	if i.host.Alias == "" {
		return "Other host..."
	}
	return i.host.Alias
}

func (i hostItem) Description() string {
	if i.host.Alias == "" {
		return "Type a host or user@host:port"
	}
	d := i.host.Description()
	if !i.keyed {
		d += " (no key found)"
	}
	return d
}

func (i hostItem) FilterValue() string {
	return i.host.Alias + " " + i.host.Hostname
}

var (
	pickKey   = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "use host"))
	cancelKey = key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "cancel"))
)

// hostPicker lists ssh_config aliases for the host that serves the site.
type hostPicker struct {
	list   list.Model
	chosen *hostItem
	done   bool
}

func newHostPicker(hosts []sshutil.HostEntry) hostPicker {
	items := make([]list.Item, 0, len(hosts)+1)
	for _, h := range hosts {
		items = append(items, hostItem{host: h, keyed: h.HasIdentityFile()})
	}
	items = append(items, hostItem{})

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorPrimary).
		BorderForeground(ColorSecondary)

	l := list.New(items, delegate, 80, 15)
	l.Title = "Which host serves config/ and data/?"
	l.Styles.Title = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	l.AdditionalShortHelpKeys = func() []key.Binding { return []key.Binding{pickKey, cancelKey} }
	return hostPicker{list: l}
}

func (m hostPicker) Init() tea.Cmd { return nil }

func (m hostPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, pickKey):
			if item, ok := m.list.SelectedItem().(hostItem); ok {
				m.chosen = &item
			}
			m.done = true
			return m, tea.Quit
		case key.Matches(msg, cancelKey):
			m.done = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height-1)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m hostPicker) View() string {
	if m.done {
		return ""
	}
	return m.list.View()
}

// result returns the chosen alias, "" for a typed host, or ErrPickCancelled.
func (m hostPicker) result() (string, error) {
	if m.chosen == nil {
		return "", ErrPickCancelled
	}
	return m.chosen.host.Alias, nil
}

// PickSSHHost asks which ssh_config alias serves the site. It returns "" when
// there are no aliases or the user chooses to type a host.
func PickSSHHost(hosts []sshutil.HostEntry) (string, error) {
	if len(hosts) == 0 {
		return "", nil
	}
	final, err := tea.NewProgram(newHostPicker(hosts)).Run()
	if err != nil {
		return "", fmt.Errorf("SSH host picker error: %w", err)
	}
	m, ok := final.(hostPicker)
	if !ok {
		return "", ErrPickCancelled
	}
	return m.result()
}
