package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Run     key.Binding
	Clear   key.Binding
	Tables  key.Binding
	Stats   key.Binding
	Prev    key.Binding
	Next    key.Binding
	Outline key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Run:     key.NewBinding(key.WithKeys("ctrl+e", "ctrl+enter"), key.WithHelp("ctrl+e", "run fragment")),
		Clear:   key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear")),
		Tables:  key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "tables")),
		Stats:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "engine stats")),
		Prev:    key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "previous fragment")),
		Next:    key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "next fragment")),
		Outline: key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "toggle outline")),
		Help:    key.NewBinding(key.WithKeys("ctrl+h"), key.WithHelp("ctrl+h", "help")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "ctrl+q"), key.WithHelp("ctrl+c", "quit")),
	}
}

// ShortHelp and FullHelp satisfy help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Run, k.Clear, k.Prev, k.Next},
		{k.Tables, k.Stats, k.Outline, k.Help, k.Quit},
	}
}
