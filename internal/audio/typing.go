package audio

import (
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// typingLoop is how much of the typing clip is looped.
const typingLoop = 2 * time.Second

// TypingConfig configures the typing sound. It is passed in explicitly so
// the sound never reads application settings on its own.
type TypingConfig struct {
	Enabled bool
	// Volume is in [0, 1].
	Volume float64
}

// action is what the typing sound should do for a given reveal state.
type action struct {
	play   bool
	rewind bool
}

// typingAction decides playback from the previous and current typing flags.
// Sound plays while characters are landing, pauses during punctuation
// pauses, and starts over from the beginning for each new run of typing.
func typingAction(wasTyping, typing, delayed, enabled bool) action {
	switch {
	case !typing:
		return action{play: false, rewind: wasTyping}
	case !enabled || delayed:
		return action{play: false, rewind: !wasTyping}
	default:
		return action{play: true, rewind: !wasTyping}
	}
}

// TypingSound loops a short clip while dialogue is being typed out.
type TypingSound struct {
	mu      sync.Mutex
	player  Player
	enabled bool
	volume  float64
	typing  bool
	closed  bool
}

// NewTypingSound prepares a typing sound on out. Nothing plays until Sync
// reports typing.
func NewTypingSound(out Output, clip Clip, cfg TypingConfig) *TypingSound {
	v := clampVolume(cfg.Volume)
	p := out.NewPlayer(newLoopReader(clip.PCM, typingLoop))
	p.SetVolume(v)
	return &TypingSound{player: p, enabled: cfg.Enabled, volume: v}
}

// Sync applies the reveal engine's typing and delayed flags.
func (s *TypingSound) Sync(typing, delayed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	a := typingAction(s.typing, typing, delayed, s.enabled)
	s.typing = typing
	s.apply(a)
}

// SetEnabled turns the sound on or off. Turning it on mid-reveal resumes
// playback at the next Sync.
func (s *TypingSound) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enabled = enabled
	if !enabled && !s.closed {
		s.player.Pause()
	}
}

// Enabled reports whether the sound is enabled.
func (s *TypingSound) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetVolume sets the volume, clamped to [0, 1].
func (s *TypingSound) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.volume = clampVolume(v)
		s.player.SetVolume(s.volume)
	}
}

// Volume returns the current volume.
func (s *TypingSound) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Close stops the sound and releases the player.
func (s *TypingSound) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.player.Pause()
	return s.player.Close()
}

// apply must be called with s.mu held.
func (s *TypingSound) apply(a action) {
	if !a.play && s.player.IsPlaying() {
		s.player.Pause()
	}
	if a.rewind {
		if _, err := s.player.Seek(0, io.SeekStart); err != nil {
			log.Debug("unable to rewind typing sound", "error", err)
		}
	}
	if a.play && !s.player.IsPlaying() {
		s.player.Play()
	}
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
