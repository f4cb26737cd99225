package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Send      key.Binding
	NextNPC   key.Binding
	PrevNPC   key.Binding
	Sound     key.Binding
	SoundUp   key.Binding
	SoundDown key.Binding
	Music     key.Binding
	MusicUp   key.Binding
	MusicDown key.Binding
	History   key.Binding
	ClearChat key.Binding
	Copy      key.Binding
	Skip      key.Binding
	Quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		NextNPC: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next npc"),
		),
		PrevNPC: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev npc"),
		),
		Sound: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "typing sound"),
		),
		SoundUp: key.NewBinding(
			key.WithKeys("ctrl+up"),
			key.WithHelp("ctrl+↑", "typing louder"),
		),
		SoundDown: key.NewBinding(
			key.WithKeys("ctrl+down"),
			key.WithHelp("ctrl+↓", "typing quieter"),
		),
		Music: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("ctrl+p", "music"),
		),
		MusicUp: key.NewBinding(
			key.WithKeys("shift+up"),
			key.WithHelp("shift+↑", "music louder"),
		),
		MusicDown: key.NewBinding(
			key.WithKeys("shift+down"),
			key.WithHelp("shift+↓", "music quieter"),
		),
		History: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("ctrl+h", "history"),
		),
		ClearChat: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear conversation"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "copy reply"),
		),
		Skip: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "skip"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.NextNPC, k.Sound, k.History, k.Skip, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Skip, k.Copy},
		{k.NextNPC, k.PrevNPC, k.History, k.ClearChat},
		{k.Sound, k.SoundUp, k.SoundDown},
		{k.Music, k.MusicUp, k.MusicDown, k.Quit},
	}
}
