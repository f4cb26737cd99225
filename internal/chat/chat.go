// Package chat is a thin streaming client for the character chat backend.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// FallbackReply is spoken when the backend fails before producing any text.
const FallbackReply = "I'm sorry, I couldn't process that right now. Let's try again later!"

// ErrNoAPIKey is returned when a provider that needs credentials has none.
var ErrNoAPIKey = errors.New("missing API key")

// Message is one turn of a conversation.
type Message struct {
	ID      string
	Role    string
	Content string
	Time    time.Time
}

// NewMessage returns a message stamped with a fresh ID and the current time.
func NewMessage(role, content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
		Time:    time.Now(),
	}
}

// TokenEvent is an incremental piece of a streamed reply. A stream ends with
// exactly one event that has Done set or Err non-nil, then the channel is
// closed.
type TokenEvent struct {
	Delta string
	Err   error
	Done  bool
}

// Provider streams chat completions.
type Provider interface {
	// StreamChat streams the reply to messages. Implementations stop when
	// ctx is done.
	StreamChat(ctx context.Context, messages []Message) (<-chan TokenEvent, error)
}
