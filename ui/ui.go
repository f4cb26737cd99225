// Package ui provides the terminal interface for talking to NPCs.
package ui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/talkbox/internal/chat"
	"github.com/dgnsrekt/talkbox/internal/npc"
	"github.com/dgnsrekt/talkbox/reveal"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "copied!"
	ellipsis             = "…"
	volumeStep           = 0.1

	headerHeight = 1
	inputHeight  = 1
	footerHeight = 1
)

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, deps Deps) *tea.Program {
	log.Debug(
		"Starting talkbox",
		"npc",
		cfg.NPC,
		"interval",
		cfg.Interval,
		"glamour_style",
		cfg.GlamourStyle,
	)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, deps), opts...)
}

// RosterReloaded returns the message that swaps in a reloaded roster. Send it
// to a running program with Program.Send.
func RosterReloaded(r *npc.Roster, err error) tea.Msg {
	return rosterMsg{roster: r, err: err}
}

// errMsg reports a request that failed before its stream started. id is
// the stream it belonged to.
type errMsg struct {
	id  int
	err error
}

func (e errMsg) Error() string { return e.err.Error() }

type (
	// revealMsg is sent whenever the reveal engine's outputs may have changed.
	revealMsg struct{}
	// revealDoneMsg is sent when the engine finishes revealing a reply.
	revealDoneMsg struct{}

	streamStartedMsg struct {
		id int
		ch <-chan chat.TokenEvent
	}
	tokenMsg struct {
		id int
		ev chat.TokenEvent
		ch <-chan chat.TokenEvent
	}
	rosterMsg struct {
		roster *npc.Roster
		err    error
	}
	statusMessageTimeoutMsg int
)

// state is the top-level application state.
type state int

const (
	stateChat state = iota
	stateHistory
)

func (s state) String() string {
	return map[state]string{
		stateChat:    "chatting",
		stateHistory: "showing history",
	}[s]
}

type model struct {
	cfg    Config
	deps   Deps
	styles styles
	keys   keyMap
	state  state
	width  int
	height int

	fatalErr error

	character npc.NPC
	engine    *reveal.Engine
	done      chan struct{}

	// unsubscribe closes updates; the subscription lasts until quit.
	updates     <-chan struct{}
	unsubscribe func()

	// The reply currently streaming in, or the last one received.
	prompt string
	reply  string

	// busy is set while a reply is in flight and cleared when the engine
	// finishes revealing it.
	busy      bool
	streaming bool
	streamID  int
	cancel    context.CancelFunc

	statusMessage string
	statusIsError bool
	statusID      int

	dialogue dialogueModel
	input    textinput.Model
	spinner  spinner.Model
	help     help.Model
}

func newModel(cfg Config, deps Deps) model {
	done := make(chan struct{}, 1)
	engine := reveal.NewEngine(reveal.Config{
		Interval: cfg.Interval,
		Delays:   cfg.Delays,
		Clock:    deps.Clock,
		OnComplete: func() {
			select {
			case done <- struct{}{}:
			default:
			}
		},
	})
	updates, unsubscribe := engine.Subscribe()

	ti := textinput.New()
	ti.Placeholder = "Say something…"
	ti.Prompt = "› "
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := model{
		cfg:      cfg,
		deps:     deps,
		styles:   newStyles(cfg.HighContrast),
		keys:     newKeyMap(),
		state:    stateChat,
		engine:      engine,
		updates:     updates,
		unsubscribe: unsubscribe,
		done:        done,
		dialogue:    newDialogueModel(cfg.GlamourStyle),
		input:       ti,
		spinner:     sp,
		help:        help.New(),
	}

	if deps.Roster == nil || deps.Roster.Len() == 0 {
		m.fatalErr = errors.New("no characters to talk to")
		return m
	}
	m.character = deps.Roster.First()
	if cfg.NPC != "" {
		c, err := deps.Roster.Resolve(cfg.NPC)
		if err != nil {
			log.Warn("unknown npc, using the first one", "npc", cfg.NPC, "error", err)
		} else {
			m.character = c
		}
	}
	return m
}

func (m model) Init() tea.Cmd {
	log.Debug("Init() called", "npc", m.character.ID)
	if m.deps.Music != nil {
		m.deps.Music.Play()
	}
	return tea.Batch(
		textinput.Blink,
		waitForReveal(m.updates),
		waitForCompletion(m.done),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		// Ctrl+C always quits no matter where in the application you are.
		case key.Matches(msg, m.keys.Quit):
			m.stopStream()
			m.engine.Reset()
			m.unsubscribe()
			m.syncTyping(reveal.Snapshot{})
			if m.deps.Music != nil {
				m.deps.Music.Pause()
			}
			return m, tea.Quit

		case key.Matches(msg, m.keys.Skip):
			if m.state == stateHistory {
				m.state = stateChat
				return m, nil
			}
			m.engine.Flush()
			return m, nil

		case key.Matches(msg, m.keys.History):
			if m.state == stateHistory {
				m.state = stateChat
			} else {
				m.state = stateHistory
			}
			return m, nil

		case key.Matches(msg, m.keys.NextNPC):
			return m, m.switchCharacter(1)

		case key.Matches(msg, m.keys.PrevNPC):
			return m, m.switchCharacter(-1)

		case key.Matches(msg, m.keys.Sound):
			return m, m.toggleSound()

		case key.Matches(msg, m.keys.SoundUp):
			return m, m.stepTypingVolume(volumeStep)

		case key.Matches(msg, m.keys.SoundDown):
			return m, m.stepTypingVolume(-volumeStep)

		case key.Matches(msg, m.keys.MusicUp):
			return m, m.stepMusicVolume(volumeStep)

		case key.Matches(msg, m.keys.MusicDown):
			return m, m.stepMusicVolume(-volumeStep)

		case key.Matches(msg, m.keys.ClearChat):
			return m, m.clearConversation()

		case key.Matches(msg, m.keys.Music):
			if m.deps.Music == nil {
				return m, m.showStatusMessage("no music track configured", false)
			}
			if m.deps.Music.Toggle() {
				return m, m.showStatusMessage("music on", false)
			}
			return m, m.showStatusMessage("music off", false)

		case key.Matches(msg, m.keys.Copy):
			if m.reply == "" {
				return m, m.showStatusMessage("nothing to copy", false)
			}
			if err := clipboard.WriteAll(m.reply); err != nil {
				log.Error("unable to copy reply", "error", err)
				return m, m.showStatusMessage("unable to copy: "+err.Error(), true)
			}
			return m, m.showStatusMessage("copied reply", false)

		case key.Matches(msg, m.keys.Send):
			if m.state != stateChat {
				return m, nil
			}
			return m, m.send()
		}

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.layout()

	case revealMsg:
		snap := m.engine.Snapshot()
		m.dialogue.setText(m.prompt, snap.Text)
		m.syncTyping(snap)
		return m, waitForReveal(m.updates)

	case revealDoneMsg:
		// A reset after the signal was queued means it belongs to an
		// earlier reply.
		if m.engine.Snapshot().Completed {
			m.busy = false
			m.input.Focus()
		}
		return m, waitForCompletion(m.done)

	case streamStartedMsg:
		if msg.id != m.streamID {
			return m, nil
		}
		return m, waitForToken(msg.id, msg.ch)

	case tokenMsg:
		if msg.id != m.streamID || !m.streaming {
			return m, nil
		}
		return m, m.handleToken(msg)

	case errMsg:
		if msg.id != m.streamID {
			return m, nil
		}
		m.finishStream()
		if errors.Is(msg.err, context.Canceled) {
			return m, nil
		}
		return m, m.showStatusMessage(msg.Error(), true)

	case rosterMsg:
		return m, m.replaceRoster(msg)

	case statusMessageTimeoutMsg:
		if int(msg) == m.statusID {
			m.statusMessage = ""
			m.statusIsError = false
		}
		return m, nil

	case spinner.TickMsg:
		if !m.waiting() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// Process children
	if m.state == stateChat {
		if !m.busy {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
		var cmd tea.Cmd
		m.dialogue.viewport, cmd = m.dialogue.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// send starts a new exchange with the current character.
func (m *model) send() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if m.busy || text == "" || m.deps.Session == nil {
		return nil
	}

	m.stopStream()
	m.engine.Reset()
	m.input.Reset()
	m.input.Blur()

	m.prompt = text
	m.reply = ""
	m.busy = true
	m.streaming = true
	m.streamID++
	m.dialogue.setText(m.prompt, "")

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	log.Debug("sending message", "npc", m.character.ID, "length", len(text))
	return tea.Batch(
		sendCmd(ctx, m.deps.Session, m.streamID, m.character, text),
		m.spinner.Tick,
	)
}

func (m *model) handleToken(msg tokenMsg) tea.Cmd {
	ev := msg.ev
	switch {
	case ev.Err != nil:
		log.Error("reply stream failed", "npc", m.character.ID, "error", ev.Err)
		m.finishStream()
		return m.showStatusMessage("reply interrupted: "+ev.Err.Error(), true)

	case ev.Done:
		m.finishStream()
		return nil

	default:
		if ev.Delta != "" {
			m.reply += ev.Delta
			m.engine.Update(m.reply, false)
		}
		return waitForToken(msg.id, msg.ch)
	}
}

// finishStream marks the end of the reply. The engine finishes revealing
// whatever arrived and its completion callback re-enables sending.
func (m *model) finishStream() {
	if !m.streaming {
		return
	}
	m.streaming = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.reply == "" {
		// Nothing to reveal, so no completion will come.
		m.busy = false
		m.input.Focus()
		return
	}
	m.engine.Update(m.reply, true)
}

// stopStream abandons the reply in flight, if any.
func (m *model) stopStream() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.streaming = false
	m.streamID++
}

func (m *model) switchCharacter(step int) tea.Cmd {
	if m.deps.Roster == nil || m.deps.Roster.Len() < 2 {
		return nil
	}
	m.stopStream()
	m.engine.Reset()
	m.character = m.deps.Roster.Next(m.character.ID, step)
	m.prompt = ""
	m.reply = ""
	m.busy = false
	m.input.Focus()
	m.dialogue.setText("", "")
	m.syncTyping(reveal.Snapshot{})
	m.layout()
	log.Debug("switched npc", "npc", m.character.ID)
	return m.showStatusMessage("now talking to "+m.character.Title(), false)
}

func (m *model) replaceRoster(msg rosterMsg) tea.Cmd {
	if msg.err != nil {
		log.Warn("roster reload failed", "error", msg.err)
		return m.showStatusMessage("roster reload failed: "+msg.err.Error(), true)
	}
	if msg.roster == nil || msg.roster.Len() == 0 {
		return nil
	}
	m.deps.Roster = msg.roster
	if c, err := msg.roster.Get(m.character.ID); err == nil {
		m.character = c
	} else {
		m.stopStream()
		m.engine.Reset()
		m.character = msg.roster.First()
		m.prompt = ""
		m.reply = ""
		m.busy = false
		m.input.Focus()
		m.dialogue.setText("", "")
	}
	m.layout()
	return m.showStatusMessage("roster reloaded", false)
}

func (m *model) toggleSound() tea.Cmd {
	if m.deps.Typing == nil {
		return m.showStatusMessage("no audio available", false)
	}
	enabled := !m.deps.Typing.Enabled()
	m.deps.Typing.SetEnabled(enabled)
	if enabled {
		snap := m.engine.Snapshot()
		m.deps.Typing.Sync(snap.Typing, snap.Delayed)
		return m.showStatusMessage("typing sound on", false)
	}
	return m.showStatusMessage("typing sound off", false)
}

func (m *model) stepTypingVolume(step float64) tea.Cmd {
	if m.deps.Typing == nil {
		return m.showStatusMessage("no audio available", false)
	}
	m.deps.Typing.SetVolume(stepVolume(m.deps.Typing.Volume(), step))
	return m.showStatusMessage(fmt.Sprintf("typing volume %d%%", percent(m.deps.Typing.Volume())), false)
}

func (m *model) stepMusicVolume(step float64) tea.Cmd {
	if m.deps.Music == nil {
		return m.showStatusMessage("no music track configured", false)
	}
	m.deps.Music.SetVolume(stepVolume(m.deps.Music.Volume(), step))
	return m.showStatusMessage(fmt.Sprintf("music volume %d%%", percent(m.deps.Music.Volume())), false)
}

// clearConversation forgets the history with the current character.
func (m *model) clearConversation() tea.Cmd {
	if m.deps.Session == nil {
		return nil
	}
	if m.busy {
		return m.showStatusMessage("wait for "+m.character.Title()+" to finish first", false)
	}
	m.deps.Session.Clear(m.character.ID)
	m.engine.Reset()
	m.prompt = ""
	m.reply = ""
	m.dialogue.setText("", "")
	log.Debug("cleared conversation", "npc", m.character.ID)
	return m.showStatusMessage("cleared conversation with "+m.character.Title(), false)
}

func (m *model) syncTyping(snap reveal.Snapshot) {
	if m.deps.Typing != nil {
		m.deps.Typing.Sync(snap.Typing, snap.Delayed)
	}
}

func (m *model) showStatusMessage(s string, isError bool) tea.Cmd {
	m.statusMessage = s
	m.statusIsError = isError
	m.statusID++
	id := m.statusID
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg(id)
	})
}

// waiting reports whether a reply is in flight but nothing has arrived yet.
func (m model) waiting() bool {
	return m.busy && m.reply == ""
}

func (m *model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	pw := 0
	if m.character.Portrait != "" {
		pw = lipgloss.Width(m.portraitView())
	}
	// Two columns of border on the dialogue box.
	w := m.width - pw - 2
	h := m.height - headerHeight - inputHeight - footerHeight - 2
	m.dialogue.setSize(w, h)
	m.input.Width = max(0, m.width-runewidth.StringWidth(m.input.Prompt)-1)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return m.errorView(m.fatalErr, true)
	}

	var body string
	switch m.state {
	case stateHistory:
		body = m.historyView()
	default:
		body = m.chatView()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		body,
		m.inputView(),
		m.footerView(),
	)
}

func (m model) headerView() string {
	title := m.styles.title.Render(m.character.Title())
	personality := m.character.Personality.Personality
	if len(m.character.Traits) > 0 {
		personality += " · " + strings.Join(m.character.Traits, ", ")
	}
	// The personality style pads one column on each side.
	avail := max(0, m.width-ansi.PrintableRuneWidth(title)-2)
	personality = truncate.StringWithTail(" "+personality, uint(avail), ellipsis) //nolint:gosec
	return title + m.styles.personality.Render(personality)
}

func (m model) portraitView() string {
	lines := strings.Split(strings.TrimRight(m.character.Portrait, "\n"), "\n")
	w := 0
	for _, l := range lines {
		w = max(w, runewidth.StringWidth(l))
	}
	for i, l := range lines {
		lines[i] = l + strings.Repeat(" ", w-runewidth.StringWidth(l))
	}
	return m.styles.portrait.Render(strings.Join(lines, "\n"))
}

func (m model) chatView() string {
	dialogue := m.styles.dialogue.Render(m.dialogue.View())
	if m.character.Portrait == "" {
		return dialogue
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.portraitView(), dialogue)
}

func (m model) historyView() string {
	var messages []chat.Message
	if m.deps.Session != nil {
		messages = m.deps.Session.History(m.character.ID)
	}
	h := historyView(m.styles, m.character.Title(), messages, m.width, time.Now())
	return m.styles.dialogue.Width(max(0, m.width-2)).Render(h)
}

func (m model) inputView() string {
	if m.waiting() {
		return m.spinner.View() + m.styles.subtle.Render(m.character.Title()+" is thinking…")
	}
	if m.busy {
		return m.styles.subtle.Render(m.character.Title() + " is talking… (esc to skip)")
	}
	return m.input.View()
}

func (m model) footerView() string {
	if m.statusMessage == "" {
		return m.help.View(m.keys)
	}
	note := truncate.StringWithTail(m.statusMessage, uint(max(0, m.width-2)), ellipsis) //nolint:gosec
	if m.statusIsError {
		return m.styles.statusError.Render(note)
	}
	return m.styles.status.Render(note)
}

func (m model) errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		m.styles.errorTitle.Render("ERROR"),
		err,
		m.styles.subtle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// COMMANDS

func sendCmd(ctx context.Context, s *chat.Session, id int, character npc.NPC, text string) tea.Cmd {
	return func() tea.Msg {
		ch, err := s.Send(ctx, character, text)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Debug("message abandoned", "npc", character.ID)
			} else {
				log.Error("unable to send message", "npc", character.ID, "error", err)
			}
			return errMsg{id: id, err: err}
		}
		return streamStartedMsg{id: id, ch: ch}
	}
}

func waitForToken(id int, ch <-chan chat.TokenEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			ev = chat.TokenEvent{Done: true}
		}
		return tokenMsg{id: id, ev: ev, ch: ch}
	}
}

func waitForReveal(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return revealMsg{}
	}
}

func waitForCompletion(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return revealDoneMsg{}
	}
}

// ETC

// stepVolume moves v by step, snapped to tenths.
func stepVolume(v, step float64) float64 {
	return math.Round((v+step)*10) / 10
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
