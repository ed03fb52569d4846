package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap contains the key bindings of a yes/no prompt.
type KeyMap struct {
	Left     key.Binding
	Right    key.Binding
	VimLeft  key.Binding
	VimRight key.Binding
	Select   key.Binding
	Accept   key.Binding
	Reject   key.Binding
	Cancel   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Left: key.NewBinding(
			key.WithKeys("left", "shift+tab"),
			key.WithHelp("←", "yes"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "tab"),
			key.WithHelp("→", "no"),
		),
		VimLeft: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "yes"),
		),
		VimRight: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "no"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Accept: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "install"),
		),
		Reject: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "cancel"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "q", "ctrl+c"),
			key.WithHelp("esc/q", "cancel"),
		),
	}
}

// IsLeft returns true if the key message matches a left navigation key.
func (k KeyMap) IsLeft(msg tea.KeyMsg) bool {
	return key.Matches(msg, k.Left) || key.Matches(msg, k.VimLeft)
}

// IsRight returns true if the key message matches a right navigation key.
func (k KeyMap) IsRight(msg tea.KeyMsg) bool {
	return key.Matches(msg, k.Right) || key.Matches(msg, k.VimRight)
}

// ShortHelp lists the bindings shown under the prompt.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Accept, k.Reject, k.Select}
}
