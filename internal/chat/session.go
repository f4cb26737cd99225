package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/talkbox/internal/npc"
	"golang.org/x/time/rate"
)

// DefaultWindow is how many past messages are sent along with a new one.
const DefaultWindow = 10

// SessionConfig configures a Session.
type SessionConfig struct {
	// Window is the number of history messages included in a request.
	Window int
	// RateLimit caps requests per second; zero means one every two seconds.
	RateLimit rate.Limit
	Burst     int
}

// Session keeps per-character conversation history and sends new messages
// through a Provider.
type Session struct {
	provider Provider
	limiter  *rate.Limiter
	window   int

	mu      sync.Mutex
	history map[string][]Message
}

// NewSession returns a Session backed by p.
func NewSession(p Provider, cfg SessionConfig) *Session {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 0.5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	return &Session{
		provider: p,
		limiter:  rate.NewLimiter(cfg.RateLimit, cfg.Burst),
		window:   cfg.Window,
		history:  make(map[string][]Message),
	}
}

// Send streams the character's reply to text. The returned channel follows
// the TokenEvent contract. If the backend fails before producing any text,
// the stream carries FallbackReply instead of an error. The exchange is
// recorded in the character's history once the stream ends, unless ctx was
// cancelled first.
func (s *Session) Send(ctx context.Context, character npc.NPC, text string) (<-chan TokenEvent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty message")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limited: %w", err)
	}

	user := NewMessage(RoleUser, text)
	messages := s.request(character, user)

	upstream, err := s.provider.StreamChat(ctx, messages)
	if err != nil {
		log.Error("chat request failed", "npc", character.ID, "error", err)
		upstream = fallbackStream()
	}

	out := make(chan TokenEvent)
	go s.relay(ctx, character.ID, user, upstream, out)
	return out, nil
}

// request builds the message list for a new user message.
func (s *Session) request(character npc.NPC, user Message) []Message {
	s.mu.Lock()
	past := s.history[character.ID]
	if len(past) > s.window {
		past = past[len(past)-s.window:]
	}
	messages := make([]Message, 0, len(past)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: npc.SystemPrompt(character.Personality)})
	messages = append(messages, past...)
	s.mu.Unlock()

	return append(messages, user)
}

func (s *Session) relay(ctx context.Context, id string, user Message, upstream <-chan TokenEvent, out chan<- TokenEvent) {
	defer close(out)

	send := func(ev TokenEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var reply strings.Builder
	last := TokenEvent{Done: true}
	for ev := range upstream {
		if ev.Err != nil && reply.Len() == 0 {
			log.Error("chat stream failed", "npc", id, "error", ev.Err)
			reply.WriteString(FallbackReply)
			send(TokenEvent{Delta: FallbackReply})
			break
		}
		if ev.Err != nil || ev.Done {
			last = ev
			break
		}
		if ev.Delta == "" {
			continue
		}
		reply.WriteString(ev.Delta)
		if !send(ev) {
			break
		}
	}
	// Drain so a provider goroutine never blocks on a reader that left.
	go func() {
		for range upstream { //nolint:revive
		}
	}()

	// An abandoned exchange never happened as far as the history goes.
	if ctx.Err() != nil {
		log.Debug("exchange abandoned, not recorded", "npc", id)
		return
	}

	s.mu.Lock()
	s.history[id] = append(s.history[id], user, NewMessage(RoleAssistant, reply.String()))
	s.mu.Unlock()

	send(last)
}

// History returns the recorded conversation with a character.
func (s *Session) History(id string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.history[id]...)
}

// Clear forgets the conversation with a character.
func (s *Session) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, id)
}

func fallbackStream() <-chan TokenEvent {
	ch := make(chan TokenEvent, 2)
	ch <- TokenEvent{Delta: FallbackReply}
	ch <- TokenEvent{Done: true}
	close(ch)
	return ch
}
