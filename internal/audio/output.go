package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

const (
	// SampleRate is the output rate; clips are resampled to it.
	SampleRate = 44100
	// Channels is the output channel count.
	Channels = 2

	bytesPerFrame = Channels * 2
)

// ErrClosed is returned when using a closed sound.
var ErrClosed = errors.New("audio: closed")

// Player is a single playback stream.
type Player interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(volume float64)
	Seek(offset int64, whence int) (int64, error)
	Close() error
}

// Output creates players.
type Output interface {
	NewPlayer(r io.Reader) Player
}

// Device is the audio output device. oto allows a single context per
// process, so NewDevice hands out the same Device on every call.
type Device struct {
	ctx *oto.Context
}

var (
	deviceOnce sync.Once
	device     *Device
	deviceErr  error
)

// NewDevice opens the audio output device.
func NewDevice() (*Device, error) {
	deviceOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			deviceErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		device = &Device{ctx: ctx}
	})
	return device, deviceErr
}

// NewPlayer implements Output.
func (d *Device) NewPlayer(r io.Reader) Player {
	return d.ctx.NewPlayer(r)
}

// OpenOutput returns the audio device, or a silent output when no device can
// be opened so the rest of the application keeps working.
func OpenOutput() Output {
	d, err := NewDevice()
	if err != nil {
		log.Warn("audio unavailable, continuing without sound", "error", err)
		return NewMockOutput()
	}
	return d
}
