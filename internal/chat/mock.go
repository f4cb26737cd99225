package chat

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MockProvider streams canned replies word by word. It backs offline mode
// and tests.
type MockProvider struct {
	// Replies are used in turn. With none, the provider echoes the last
	// user message.
	Replies []string
	// Delay is the pause between words.
	Delay time.Duration
	// Err, if set, is returned from StreamChat.
	Err error
	// StreamErr, if set, ends every stream with this error after the
	// reply has been sent.
	StreamErr error

	mu    sync.Mutex
	next  int
	calls [][]Message
}

// NewMockProvider returns a MockProvider with a short word delay.
func NewMockProvider(replies ...string) *MockProvider {
	return &MockProvider{Replies: replies, Delay: 60 * time.Millisecond}
}

// StreamChat implements Provider.
func (m *MockProvider) StreamChat(ctx context.Context, messages []Message) (<-chan TokenEvent, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]Message(nil), messages...))
	reply := m.reply(messages)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	ch := make(chan TokenEvent)
	go func() {
		defer close(ch)
		for _, word := range splitWords(reply) {
			if m.Delay > 0 {
				select {
				case <-time.After(m.Delay):
				case <-ctx.Done():
					ch <- TokenEvent{Err: ctx.Err()}
					return
				}
			}
			select {
			case ch <- TokenEvent{Delta: word}:
			case <-ctx.Done():
				ch <- TokenEvent{Err: ctx.Err()}
				return
			}
		}
		if m.StreamErr != nil {
			ch <- TokenEvent{Err: m.StreamErr}
			return
		}
		ch <- TokenEvent{Done: true}
	}()
	return ch, nil
}

// Calls returns the message lists StreamChat was called with.
func (m *MockProvider) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Message(nil), m.calls...)
}

// reply must be called with m.mu held.
func (m *MockProvider) reply(messages []Message) string {
	if len(m.Replies) > 0 {
		r := m.Replies[m.next%len(m.Replies)]
		m.next++
		return r
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return "You said: " + messages[i].Content
		}
	}
	return "..."
}

// splitWords splits s into chunks that concatenate back to s, each ending
// after a run of spaces.
func splitWords(s string) []string {
	var out []string
	for len(s) > 0 {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			out = append(out, s)
			break
		}
		j := i
		for j < len(s) && s[j] == ' ' {
			j++
		}
		out = append(out, s[:j])
		s = s[j:]
	}
	return out
}
