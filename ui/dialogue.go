package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// dialogueModel shows the revealed part of the current reply.
type dialogueModel struct {
	viewport viewport.Model
	style    string

	// Glamour renderers are relatively expensive to build, so keep one
	// around for the current wrap width.
	renderer *glamour.TermRenderer
	width    int

	prompt string
	text   string
}

func newDialogueModel(glamourStyle string) dialogueModel {
	if glamourStyle == glamourstyles.AutoStyle || glamourStyle == "" {
		if termenv.HasDarkBackground() {
			glamourStyle = glamourstyles.DarkStyle
		} else {
			glamourStyle = glamourstyles.LightStyle
		}
	}
	// Only paging keys scroll; everything else belongs to the text input.
	vp := viewport.New(0, 0)
	vp.KeyMap = viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
	}
	return dialogueModel{
		viewport: vp,
		style:    glamourStyle,
	}
}

func (m *dialogueModel) setSize(w, h int) {
	m.viewport.Width = max(0, w)
	m.viewport.Height = max(0, h)
	m.refresh()
}

// setText replaces the revealed text and keeps the view scrolled to the end.
func (m *dialogueModel) setText(prompt, text string) {
	if prompt == m.prompt && text == m.text {
		return
	}
	m.prompt = prompt
	m.text = text
	m.refresh()
}

func (m *dialogueModel) refresh() {
	var b strings.Builder
	if m.prompt != "" {
		b.WriteString("> " + m.prompt + "\n\n")
	}
	if m.text != "" {
		out, err := m.render(m.text)
		if err != nil {
			log.Debug("falling back to plain dialogue", "error", err)
			out = m.text
		}
		b.WriteString(out)
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *dialogueModel) render(md string) (string, error) {
	if m.renderer == nil || m.width != m.viewport.Width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.style),
			glamour.WithWordWrap(max(0, m.viewport.Width-4)),
		)
		if err != nil {
			return "", fmt.Errorf("error creating glamour renderer: %w", err)
		}
		m.renderer = r
		m.width = m.viewport.Width
	}

	out, err := m.renderer.Render(md)
	if err != nil {
		return "", fmt.Errorf("error rendering dialogue: %w", err)
	}
	return strings.Trim(out, "\n"), nil
}

func (m dialogueModel) View() string {
	return m.viewport.View()
}
