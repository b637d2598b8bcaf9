package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// KeyMap defines the pick list key bindings
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Choose  key.Binding
	Dismiss key.Binding
}

// DefaultKeyMap uses arrow keys alongside vim-style j/k.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up", "ctrl+p"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down", "ctrl+n"),
		key.WithHelp("j/↓", "down"),
	),
	Choose: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("esc", "q", "ctrl+c"),
		key.WithHelp("esc", "dismiss"),
	),
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	detailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).MarginTop(1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// TeaChooser shows an interactive pick list. Without Input it reads the
// controlling terminal so the command's stdin stays free for the host feed.
type TeaChooser struct {
	Input  io.Reader
	Output io.Writer
	Keys   *KeyMap
}

func (c TeaChooser) Choose(ctx context.Context, title string, items []Item) (int, bool, error) {
	keys := DefaultKeyMap
	if c.Keys != nil {
		keys = *c.Keys
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if c.Input != nil {
		opts = append(opts, tea.WithInput(c.Input))
	} else {
		opts = append(opts, tea.WithInputTTY())
	}
	if c.Output != nil {
		opts = append(opts, tea.WithOutput(c.Output))
	}

	final, err := tea.NewProgram(newPickModel(title, items, keys), opts...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, tea.ErrProgramKilled) {
			return -1, false, ctxErr
		}
		return -1, false, fmt.Errorf("pick list: %w", err)
	}
	m, ok := final.(pickModel)
	if !ok || !m.chosen {
		return -1, false, nil
	}
	return m.cursor, true, nil
}

// pickModel is the bubbletea model behind TeaChooser
type pickModel struct {
	title  string
	items  []Item
	keys   KeyMap
	cursor int
	chosen bool
	done   bool
}

func newPickModel(title string, items []Item, keys KeyMap) pickModel {
	return pickModel{title: title, items: items, keys: keys}
}

func (m pickModel) Init() tea.Cmd {
	return nil
}

func (m pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.done {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		} else if len(m.items) > 0 {
			m.cursor = len(m.items) - 1
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.cursor < len(m.items)-1 {
			m.cursor++
		} else {
			m.cursor = 0
		}
	case key.Matches(keyMsg, m.keys.Choose):
		if len(m.items) == 0 {
			return m, nil
		}
		m.chosen = true
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Dismiss):
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m pickModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	for i, it := range m.items {
		line := "  " + it.Label
		if i == m.cursor {
			line = cursorStyle.Render("> ") + selectedStyle.Render(it.Label)
		}
		if it.Description != "" {
			line += " " + detailStyle.Render(it.Description)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	help := []string{}
	for _, binding := range []key.Binding{m.keys.Up, m.keys.Down, m.keys.Choose, m.keys.Dismiss} {
		h := binding.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(helpStyle.Render(strings.Join(help, " • ")))
	b.WriteString("\n")
	return b.String()
}
