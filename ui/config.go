package ui

import (
	"time"

	"github.com/dgnsrekt/talkbox/internal/audio"
	"github.com/dgnsrekt/talkbox/internal/chat"
	"github.com/dgnsrekt/talkbox/internal/npc"
	"github.com/dgnsrekt/talkbox/reveal"
)

// Config contains TUI-specific configuration.
type Config struct {
	// NPC is the id of the character selected at startup.
	NPC string

	// Reveal pacing
	Interval time.Duration
	Delays   reveal.DelayTable

	GlamourStyle string `env:"GLAMOUR_STYLE"         envDefault:"auto"`
	HighContrast bool   `env:"TALKBOX_HIGH_CONTRAST"`
	EnableMouse  bool
}

// Deps are the collaborators the TUI drives. Typing and Music may be nil.
type Deps struct {
	Roster  *npc.Roster
	Session *chat.Session
	Typing  *audio.TypingSound
	Music   *audio.Music

	// Clock paces the reveal; nil means the system clock.
	Clock reveal.Clock
}
