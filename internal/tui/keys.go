package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle      key.Binding
	All         key.Binding
	Unsubscribe key.Binding
	Filter      key.Binding
	Confirm     key.Binding
	Cancel      key.Binding
	Back        key.Binding
	Quit        key.Binding
}

var defaultKeyMap = keyMap{
	Toggle: key.NewBinding(
		key.WithKeys(" ", "space", "x"),
		key.WithHelp("space", "select"),
	),
	All: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "select all"),
	),
	Unsubscribe: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "unsubscribe and delete"),
	),
	Filter: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "filter and delete"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("y", "enter"),
		key.WithHelp("y", "yes"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("n", "esc"),
		key.WithHelp("n", "no"),
	),
	Back: key.NewBinding(
		key.WithKeys("enter", "esc"),
		key.WithHelp("enter", "back to senders"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp lists the selection screen bindings.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.All, k.Unsubscribe, k.Filter, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
