package audio

import (
	"io"
	"sync"
)

// MockOutput records players without producing sound. It backs tests and
// runs where no audio device is available.
type MockOutput struct {
	mu      sync.Mutex
	players []*MockPlayer
}

// NewMockOutput returns an empty MockOutput.
func NewMockOutput() *MockOutput {
	return &MockOutput{}
}

// NewPlayer implements Output.
func (o *MockOutput) NewPlayer(r io.Reader) Player {
	o.mu.Lock()
	defer o.mu.Unlock()
	p := &MockPlayer{source: r, volume: 1}
	o.players = append(o.players, p)
	return p
}

// Players returns every player created so far.
func (o *MockOutput) Players() []*MockPlayer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*MockPlayer(nil), o.players...)
}

// MockPlayer tracks the calls a Player receives.
type MockPlayer struct {
	mu      sync.Mutex
	source  io.Reader
	playing bool
	closed  bool
	volume  float64
	plays   int
	pauses  int
	rewinds int
}

func (p *MockPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.playing = true
	p.plays++
}

func (p *MockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.pauses++
}

func (p *MockPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *MockPlayer) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
}

// Volume returns the last volume set.
func (p *MockPlayer) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *MockPlayer) Seek(offset int64, whence int) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if offset == 0 && whence == io.SeekStart {
		p.rewinds++
	}
	if s, ok := p.source.(io.Seeker); ok {
		return s.Seek(offset, whence)
	}
	return 0, nil
}

func (p *MockPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.playing = false
	return nil
}

// Counts returns how often Play, Pause and a rewind to the start happened.
func (p *MockPlayer) Counts() (plays, pauses, rewinds int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays, p.pauses, p.rewinds
}

// Closed reports whether Close was called.
func (p *MockPlayer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
