package audio

import (
	"sync"
)

// Music loops a background track.
type Music struct {
	mu     sync.Mutex
	player Player
	volume float64
	closed bool
}

// NewMusic prepares clip for looped playback on out at volume.
func NewMusic(out Output, clip Clip, volume float64) *Music {
	v := clampVolume(volume)
	p := out.NewPlayer(newLoopReader(clip.PCM, 0))
	p.SetVolume(v)
	return &Music{player: p, volume: v}
}

// Play starts or resumes the track.
func (m *Music) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.player.Play()
	}
}

// Pause pauses the track.
func (m *Music) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.player.Pause()
	}
}

// Toggle flips between playing and paused and reports whether it is now
// playing.
func (m *Music) Toggle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	if m.player.IsPlaying() {
		m.player.Pause()
		return false
	}
	m.player.Play()
	return true
}

// SetVolume sets the volume, clamped to [0, 1].
func (m *Music) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.volume = clampVolume(v)
		m.player.SetVolume(m.volume)
	}
}

// Volume returns the current volume.
func (m *Music) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Close stops the track.
func (m *Music) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	m.player.Pause()
	return m.player.Close()
}
