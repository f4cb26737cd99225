package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/talkbox/internal/audio"
	"github.com/dgnsrekt/talkbox/internal/chat"
	"github.com/dgnsrekt/talkbox/internal/npc"
	"github.com/dgnsrekt/talkbox/reveal"
	"golang.org/x/time/rate"
)

type testHarness struct {
	clock    *reveal.ManualClock
	provider *chat.MockProvider
	player   *audio.MockPlayer
	typing   *audio.TypingSound
}

func newTestModel(t *testing.T, replies ...string) (model, *testHarness) {
	t.Helper()

	roster, err := npc.Builtin()
	if err != nil {
		t.Fatalf("Builtin() error: %v", err)
	}
	provider := chat.NewMockProvider(replies...)
	provider.Delay = 0

	out := audio.NewMockOutput()
	typing := audio.NewTypingSound(out, audio.Clip{}, audio.TypingConfig{Enabled: true, Volume: 1})

	h := &testHarness{
		clock:    reveal.NewManualClock(),
		provider: provider,
		player:   out.Players()[0],
		typing:   typing,
	}
	m := newModel(Config{
		Interval:     10 * time.Millisecond,
		GlamourStyle: "notty",
	}, Deps{
		Roster:  roster,
		Session: chat.NewSession(provider, chat.SessionConfig{RateLimit: rate.Inf}),
		Typing:  typing,
		Clock:   h.clock,
	})
	if m.fatalErr != nil {
		t.Fatalf("newModel() error: %v", m.fatalErr)
	}
	return m, h
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func keyPress(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

// sendAndStream types text, presses enter and feeds the whole reply stream
// back into the model.
func sendAndStream(t *testing.T, m model, text string) model {
	t.Helper()

	m.input.SetValue(text)
	m, cmd := update(t, m, keyPress(tea.KeyEnter))
	if !m.busy {
		t.Fatal("model should be busy after sending")
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok || len(batch) == 0 {
		t.Fatalf("expected a batch of commands, got %T", cmd)
	}

	// The first command performs the request.
	msg := batch[0]()
	for i := 0; i < 100; i++ {
		var next tea.Cmd
		m, next = update(t, m, msg)
		if !m.streaming || next == nil {
			return m
		}
		msg = next()
	}
	t.Fatal("stream did not finish")
	return m
}

func TestSendRevealsReply(t *testing.T) {
	m, h := newTestModel(t, "Well met, traveler.")

	m = sendAndStream(t, m, "hello")
	if m.reply != "Well met, traveler." {
		t.Fatalf("reply = %q", m.reply)
	}
	if !m.busy {
		t.Fatal("sending should stay disabled until the reveal completes")
	}

	m, _ = update(t, m, revealMsg{})
	if !h.player.IsPlaying() {
		t.Error("typing sound should play while the reply is typed")
	}

	h.clock.RunAll(1000)
	m, _ = update(t, m, revealMsg{})
	if h.player.IsPlaying() {
		t.Error("typing sound should stop once the reply is shown")
	}
	if m.dialogue.text != "Well met, traveler." {
		t.Errorf("dialogue text = %q", m.dialogue.text)
	}

	select {
	case <-m.done:
	default:
		t.Fatal("completion was not signalled")
	}
	m, _ = update(t, m, revealDoneMsg{})
	if m.busy {
		t.Error("completion should re-enable sending")
	}
	if !m.input.Focused() {
		t.Error("input should be focused again")
	}

	history := m.deps.Session.History(m.character.ID)
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want 2", len(history))
	}
}

func TestSendIgnoredWhileBusy(t *testing.T) {
	m, h := newTestModel(t, "One two three.")

	m = sendAndStream(t, m, "first")
	m.input.SetValue("second")
	_, cmd := update(t, m, keyPress(tea.KeyEnter))
	if cmd != nil {
		t.Error("enter should do nothing while a reply is in flight")
	}
	if calls := len(h.provider.Calls()); calls != 1 {
		t.Errorf("provider called %d times, want 1", calls)
	}
}

func TestSendEmptyInput(t *testing.T) {
	m, _ := newTestModel(t)

	m.input.SetValue("   ")
	m, cmd := update(t, m, keyPress(tea.KeyEnter))
	if cmd != nil || m.busy {
		t.Error("blank input should not be sent")
	}
}

func TestSkipFlushesReveal(t *testing.T) {
	m, _ := newTestModel(t, "A long and winding answer.")

	m = sendAndStream(t, m, "tell me")
	if !m.engine.IsTyping() {
		t.Fatal("reply should still be typing")
	}

	m, _ = update(t, m, keyPress(tea.KeyEsc))
	snap := m.engine.Snapshot()
	if !snap.Completed || snap.Text != "A long and winding answer." {
		t.Errorf("after skip: %+v", snap)
	}
	m, _ = update(t, m, revealDoneMsg{})
	if m.busy {
		t.Error("skip should end the busy state through completion")
	}
}

func TestSwitchCharacterResets(t *testing.T) {
	m, h := newTestModel(t, "Hmm.")
	first := m.character.ID

	m = sendAndStream(t, m, "hi")
	oldID := m.streamID

	m, cmd := update(t, m, keyPress(tea.KeyTab))
	if cmd == nil {
		t.Error("switching should show a status message")
	}
	if m.character.ID == first {
		t.Fatal("tab should move to the next character")
	}
	if m.busy || m.reply != "" {
		t.Error("switching should clear the conversation view")
	}
	if snap := m.engine.Snapshot(); snap.State != reveal.StateIdle {
		t.Errorf("engine state = %v, want idle", snap.State)
	}
	if h.player.IsPlaying() {
		t.Error("typing sound should stop on switch")
	}

	// A token from the abandoned stream is ignored.
	m, _ = update(t, m, tokenMsg{id: oldID, ev: chat.TokenEvent{Delta: "late"}})
	if m.reply != "" {
		t.Errorf("stale token was applied: %q", m.reply)
	}

	m, _ = update(t, m, keyPress(tea.KeyShiftTab))
	if m.character.ID != first {
		t.Errorf("shift+tab should go back to %q, got %q", first, m.character.ID)
	}
}

func TestRevealDoneAfterResetIgnored(t *testing.T) {
	m, h := newTestModel(t, "Done.")

	m = sendAndStream(t, m, "hi")
	h.clock.RunAll(1000)

	m.input.SetValue("again")
	m.busy = false
	m, _ = update(t, m, keyPress(tea.KeyEnter))
	m, _ = update(t, m, revealDoneMsg{})
	if !m.busy {
		t.Error("a completion from the previous reply must not re-enable sending")
	}
}

func TestStreamErrorWithoutText(t *testing.T) {
	m, _ := newTestModel(t)
	m.input.SetValue("hi")
	m, _ = update(t, m, keyPress(tea.KeyEnter))

	m, cmd := update(t, m, errMsg{id: m.streamID, err: errors.New("boom")})
	if m.busy {
		t.Error("an error with nothing to reveal should re-enable sending")
	}
	if cmd == nil || !m.statusIsError {
		t.Error("error should be shown in the status line")
	}
}

func TestStaleSendErrorIgnored(t *testing.T) {
	m, _ := newTestModel(t)

	m.input.SetValue("first")
	m, _ = update(t, m, keyPress(tea.KeyEnter))
	firstID := m.streamID

	m, _ = update(t, m, keyPress(tea.KeyTab))
	m.input.SetValue("second")
	m, _ = update(t, m, keyPress(tea.KeyEnter))
	if !m.busy || !m.streaming {
		t.Fatal("second message should be in flight")
	}

	// The first request gives up only after the second one started.
	late := fmt.Errorf("rate limited: %w", context.Canceled)
	m, cmd := update(t, m, errMsg{id: firstID, err: late})
	if cmd != nil {
		t.Error("a stale error should not produce a command")
	}
	if !m.busy || !m.streaming || m.cancel == nil {
		t.Error("a stale error must not end the live request")
	}
	if m.statusIsError {
		t.Errorf("stale error shown: %q", m.statusMessage)
	}
}

func TestCancelledSendErrorSilent(t *testing.T) {
	m, _ := newTestModel(t)
	m.input.SetValue("hi")
	m, _ = update(t, m, keyPress(tea.KeyEnter))

	m, cmd := update(t, m, errMsg{id: m.streamID, err: fmt.Errorf("rate limited: %w", context.Canceled)})
	if cmd != nil || m.statusIsError {
		t.Error("a cancelled request should not show an error")
	}
	if m.busy {
		t.Error("sending should be enabled again")
	}
}

func TestStreamErrorAfterText(t *testing.T) {
	m, _ := newTestModel(t)
	m.input.SetValue("hi")
	m, _ = update(t, m, keyPress(tea.KeyEnter))

	ch := make(chan chat.TokenEvent)
	m, _ = update(t, m, tokenMsg{id: m.streamID, ev: chat.TokenEvent{Delta: "Partial"}, ch: ch})
	m, _ = update(t, m, tokenMsg{id: m.streamID, ev: chat.TokenEvent{Err: errors.New("cut off")}, ch: ch})

	if !m.engine.Snapshot().EndOfStream {
		t.Error("the partial reply should be marked as ended")
	}
	if !m.busy {
		t.Error("sending stays disabled until the partial reply is revealed")
	}
	if !strings.Contains(m.statusMessage, "cut off") {
		t.Errorf("status = %q", m.statusMessage)
	}
}

func TestToggleSound(t *testing.T) {
	m, h := newTestModel(t)

	m, _ = update(t, m, keyPress(tea.KeyCtrlS))
	if h.typing.Enabled() {
		t.Error("ctrl+s should disable the typing sound")
	}
	if m.statusMessage != "typing sound off" {
		t.Errorf("status = %q", m.statusMessage)
	}

	m, _ = update(t, m, keyPress(tea.KeyCtrlS))
	if !h.typing.Enabled() || m.statusMessage != "typing sound on" {
		t.Error("ctrl+s should enable the typing sound again")
	}
}

func TestVolumeKeys(t *testing.T) {
	m, h := newTestModel(t)

	m, _ = update(t, m, keyPress(tea.KeyCtrlDown))
	if v := h.typing.Volume(); v != 0.9 {
		t.Errorf("typing volume = %v, want 0.9", v)
	}
	if h.player.Volume() != 0.9 {
		t.Errorf("player volume = %v, want 0.9", h.player.Volume())
	}
	if m.statusMessage != "typing volume 90%" {
		t.Errorf("status = %q", m.statusMessage)
	}

	m, _ = update(t, m, keyPress(tea.KeyCtrlUp))
	m, _ = update(t, m, keyPress(tea.KeyCtrlUp))
	if v := h.typing.Volume(); v != 1 {
		t.Errorf("typing volume = %v, want it capped at 1", v)
	}

	m, _ = update(t, m, keyPress(tea.KeyShiftUp))
	if m.statusMessage != "no music track configured" {
		t.Errorf("status = %q", m.statusMessage)
	}

	music := audio.NewMusic(audio.NewMockOutput(), audio.Clip{}, 0.3)
	m.deps.Music = music
	m, _ = update(t, m, keyPress(tea.KeyShiftUp))
	if v := music.Volume(); v != 0.4 {
		t.Errorf("music volume = %v, want 0.4", v)
	}
	for range 6 {
		m, _ = update(t, m, keyPress(tea.KeyShiftDown))
	}
	if v := music.Volume(); v != 0 {
		t.Errorf("music volume = %v, want it floored at 0", v)
	}
	if m.statusMessage != "music volume 0%" {
		t.Errorf("status = %q", m.statusMessage)
	}
}

func TestClearConversation(t *testing.T) {
	m, h := newTestModel(t, "Good day.")

	m = sendAndStream(t, m, "hello")
	m, _ = update(t, m, keyPress(tea.KeyCtrlL))
	if !strings.HasPrefix(m.statusMessage, "wait for") {
		t.Errorf("clearing mid-reply: status = %q", m.statusMessage)
	}

	h.clock.RunAll(1000)
	m, _ = update(t, m, revealDoneMsg{})
	if n := len(m.deps.Session.History(m.character.ID)); n != 2 {
		t.Fatalf("history has %d messages, want 2", n)
	}

	m, _ = update(t, m, keyPress(tea.KeyCtrlL))
	if n := len(m.deps.Session.History(m.character.ID)); n != 0 {
		t.Errorf("history has %d messages after clearing", n)
	}
	if m.reply != "" || m.dialogue.text != "" {
		t.Error("clearing should empty the dialogue")
	}
	if !strings.HasPrefix(m.statusMessage, "cleared conversation with") {
		t.Errorf("status = %q", m.statusMessage)
	}
}

func TestQuitReleasesSubscription(t *testing.T) {
	m, _ := newTestModel(t)
	out := audio.NewMockOutput()
	m.deps.Music = audio.NewMusic(out, audio.Clip{}, 0.3)
	m.deps.Music.Play()

	m, cmd := update(t, m, keyPress(tea.KeyCtrlC))
	if cmd == nil {
		t.Fatal("ctrl+c should quit")
	}
	if out.Players()[0].IsPlaying() {
		t.Error("music should stop on quit")
	}

	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-m.updates:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("reveal updates still subscribed after quit")
		}
	}
}

func TestStatusMessageTimeout(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = update(t, m, keyPress(tea.KeyCtrlY))
	if m.statusMessage != "nothing to copy" {
		t.Fatalf("status = %q", m.statusMessage)
	}
	id := m.statusID

	m, _ = update(t, m, keyPress(tea.KeyCtrlP))
	m, _ = update(t, m, statusMessageTimeoutMsg(id))
	if m.statusMessage == "" {
		t.Error("an old timeout should not clear a newer message")
	}
	m, _ = update(t, m, statusMessageTimeoutMsg(m.statusID))
	if m.statusMessage != "" {
		t.Error("status message should clear after its timeout")
	}
}

func TestHistoryView(t *testing.T) {
	m, _ := newTestModel(t, "Fine weather today.")
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m = sendAndStream(t, m, "how are you?")

	m, _ = update(t, m, keyPress(tea.KeyCtrlH))
	if m.state != stateHistory {
		t.Fatal("ctrl+h should open the history")
	}
	v := m.View()
	for _, want := range []string{"You", "how are you?", "Fine weather today."} {
		if !strings.Contains(v, want) {
			t.Errorf("history view missing %q", want)
		}
	}

	m, _ = update(t, m, keyPress(tea.KeyEsc))
	if m.state != stateChat {
		t.Error("esc should close the history")
	}
}

func TestHistoryViewTimes(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	messages := []chat.Message{
		{Role: chat.RoleUser, Content: "hello", Time: now.Add(-5 * time.Minute)},
		{Role: chat.RoleAssistant, Content: "hi there", Time: now.Add(-4 * time.Minute)},
	}
	v := historyView(newStyles(false), "Bramble", messages, 80, now)
	for _, want := range []string{"5 minutes ago", "4 minutes ago", "Bramble", "hi there"} {
		if !strings.Contains(v, want) {
			t.Errorf("history missing %q:\n%s", want, v)
		}
	}

	empty := historyView(newStyles(false), "Bramble", nil, 80, now)
	if !strings.Contains(empty, "No conversation with Bramble") {
		t.Errorf("empty history = %q", empty)
	}
}

func TestRosterReloaded(t *testing.T) {
	m, _ := newTestModel(t)

	zed := npc.NPC{ID: "zed", Personality: npc.Personality{Name: "Zed", Personality: "Calm"}}
	m, _ = update(t, m, RosterReloaded(npc.NewRoster([]npc.NPC{zed}), nil))
	if m.character.ID != "zed" {
		t.Errorf("character = %q, want zed", m.character.ID)
	}

	m, _ = update(t, m, RosterReloaded(nil, errors.New("bad yaml")))
	if !m.statusIsError {
		t.Error("reload errors should be shown")
	}
	if m.character.ID != "zed" {
		t.Error("a failed reload should keep the current roster")
	}
}

func TestStartupCharacter(t *testing.T) {
	roster, err := npc.Builtin()
	if err != nil {
		t.Fatal(err)
	}

	m := newModel(Config{NPC: "quill", GlamourStyle: "notty"}, Deps{Roster: roster})
	if m.character.Name != "Quill" {
		t.Errorf("character = %q, want Quill", m.character.Name)
	}

	m = newModel(Config{GlamourStyle: "notty"}, Deps{Roster: npc.NewRoster(nil)})
	if m.fatalErr == nil {
		t.Error("an empty roster should be fatal")
	}
	next, cmd := m.Update(keyPress(tea.KeyRunes))
	if cmd == nil {
		t.Error("any key should quit after a fatal error")
	}
	if !strings.Contains(next.View(), "ERROR") {
		t.Error("fatal errors should be shown")
	}
}

func TestHeaderTruncates(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 20, Height: 24})

	header := m.headerView()
	if w := lipgloss.Width(header); w > 20 {
		t.Errorf("header width = %d, want at most 20", w)
	}
	if !strings.Contains(m.View(), "Bramble") {
		t.Error("view should show the character name")
	}
}
