package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every dashboard binding.
type keyMap struct {
	Start      key.Binding
	Stop       key.Binding
	Pause      key.Binding
	Resume     key.Binding
	Emergency  key.Binding
	Save       key.Binding
	Reload     key.Binding
	Reset      key.Binding
	Sound      key.Binding
	ClearCache key.Binding
	ResetStats key.Binding
	Dismiss    key.Binding
	Up         key.Binding
	Down       key.Binding
	Top        key.Binding
	Bottom     key.Binding
	Help       key.Binding
	Quit       key.Binding
	Confirm    key.Binding
	Cancel     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Start:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		Stop:       key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop")),
		Pause:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
		Resume:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resume")),
		Emergency:  key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "emergency stop")),
		Save:       key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "save config")),
		Reload:     key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reload config")),
		Reset:      key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "reset config")),
		Sound:      key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "sound")),
		ClearCache: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear cache")),
		ResetStats: key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "reset stats")),
		Dismiss:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dismiss")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
		Top:        key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom:     key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Confirm:    key.NewBinding(key.WithKeys("y", "Y")),
		Cancel:     key.NewBinding(key.WithKeys("n", "N", "esc")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.Pause, k.Resume, k.Emergency, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Stop, k.Pause, k.Resume, k.Emergency},
		{k.Save, k.Reload, k.Reset, k.Sound},
		{k.ClearCache, k.ResetStats, k.Dismiss},
		{k.Up, k.Down, k.Top, k.Bottom, k.Help, k.Quit},
	}
}
