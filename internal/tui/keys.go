package tui

import "github.com/charmbracelet/bubbles/key"

// DashboardKeyMap holds the bindings of the blob list.
type DashboardKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Download key.Binding
	Delete   key.Binding
	Copy     key.Binding
	Refresh  key.Binding
	Settings key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// ConfirmKeyMap holds the bindings of the delete confirmation.
type ConfirmKeyMap struct {
	Yes key.Binding
	No  key.Binding
}

// SettingsKeyMap holds the bindings of the settings panel.
type SettingsKeyMap struct {
	Tab   key.Binding
	Up    key.Binding
	Down  key.Binding
	Close key.Binding
}

var DashboardKeys = DashboardKeyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Download: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "download")),
	Delete:   key.NewBinding(key.WithKeys("x", "d", "delete"), key.WithHelp("x", "delete")),
	Copy:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy sha256")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Settings: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "settings")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

var ConfirmKeys = ConfirmKeyMap{
	Yes: key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "delete")),
	No:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
}

var SettingsKeys = SettingsKeyMap{
	Tab:   key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab", "next category")),
	Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Close: key.NewBinding(key.WithKeys("esc", "q", "s"), key.WithHelp("esc", "close")),
}

func (k DashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Download, k.Delete, k.Copy, k.Help, k.Quit}
}

func (k DashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Refresh},
		{k.Download, k.Delete, k.Copy},
		{k.Settings, k.Help, k.Quit},
	}
}

func (k ConfirmKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Yes, k.No}
}

func (k ConfirmKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func (k SettingsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Up, k.Down, k.Close}
}

func (k SettingsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
