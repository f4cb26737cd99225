package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
)

const rate = beep.SampleRate(SampleRate)

// Clip is 16-bit little-endian stereo PCM at SampleRate.
type Clip struct {
	PCM []byte
}

// Duration returns the clip's length.
func (c Clip) Duration() time.Duration {
	return rate.D(len(c.PCM) / bytesPerFrame)
}

// LoadClip decodes a wav or mp3 file.
func LoadClip(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("unable to open clip: %w", err)
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		s, format, err = wav.Decode(f)
	case ".mp3":
		s, format, err = mp3.Decode(f)
	default:
		_ = f.Close()
		return Clip{}, fmt.Errorf("unsupported clip format %q: use .wav or .mp3", filepath.Ext(path))
	}
	if err != nil {
		_ = f.Close()
		return Clip{}, fmt.Errorf("unable to decode clip: %w", err)
	}
	defer s.Close() //nolint:errcheck

	var src beep.Streamer = s
	if format.SampleRate != rate {
		src = beep.Resample(4, format.SampleRate, rate, s)
	}
	return Render(src), nil
}

// Render drains s into a Clip.
func Render(s beep.Streamer) Clip {
	var pcm []byte
	buf := make([][2]float64, 512)
	frame := make([]byte, bytesPerFrame)
	for {
		n, ok := s.Stream(buf)
		for _, sample := range buf[:n] {
			binary.LittleEndian.PutUint16(frame[0:], uint16(toInt16(sample[0])))
			binary.LittleEndian.PutUint16(frame[2:], uint16(toInt16(sample[1])))
			pcm = append(pcm, frame...)
		}
		if !ok {
			return Clip{PCM: pcm}
		}
	}
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(v * math.MaxInt16)
}

// SynthesizeTyping builds a keyboard-like clip: short filtered noise clicks
// at slightly irregular intervals. The seed makes it reproducible.
func SynthesizeTyping(length time.Duration, seed int64) Clip {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec
	total := rate.N(length)

	var parts []beep.Streamer
	used := 0
	for used < total {
		gap := rate.N(time.Duration(45+rng.Intn(50)) * time.Millisecond)
		click := rate.N(time.Duration(8+rng.Intn(6)) * time.Millisecond)
		if used+click+gap > total {
			parts = append(parts, beep.Silence(total-used))
			break
		}
		parts = append(parts,
			newEnvelope(newNoise(click, 0.35+rng.Float64()*0.2, rng), click, click/8, click/2),
			beep.Silence(gap),
		)
		used += click + gap
	}
	return Render(beep.Seq(parts...))
}

// noise is a one-pole low-passed white noise burst.
type noise struct {
	remaining int
	gain      float64
	last      float64
	rng       *rand.Rand
}

func newNoise(samples int, gain float64, rng *rand.Rand) beep.Streamer {
	return &noise{remaining: samples, gain: gain, rng: rng}
}

func (n *noise) Stream(samples [][2]float64) (int, bool) {
	if n.remaining <= 0 {
		return 0, false
	}
	count := len(samples)
	if count > n.remaining {
		count = n.remaining
	}
	for i := 0; i < count; i++ {
		n.last = 0.6*n.last + 0.4*(n.rng.Float64()*2-1)
		v := n.last * n.gain
		samples[i][0] = v
		samples[i][1] = v
	}
	n.remaining -= count
	return count, true
}

func (n *noise) Err() error { return nil }

// envelope applies a linear attack and release to a stream of known length.
type envelope struct {
	s       beep.Streamer
	pos     int
	attack  int
	release int
	total   int
}

func newEnvelope(s beep.Streamer, total, attack, release int) beep.Streamer {
	return &envelope{s: s, attack: attack, release: release, total: total}
}

func (e *envelope) Stream(samples [][2]float64) (int, bool) {
	n, ok := e.s.Stream(samples)
	for i := 0; i < n; i++ {
		vol := 1.0
		if e.attack > 0 && e.pos < e.attack {
			vol = float64(e.pos) / float64(e.attack)
		}
		if e.release > 0 && e.pos >= e.total-e.release {
			vol = math.Min(vol, float64(e.total-e.pos)/float64(e.release))
		}
		samples[i][0] *= vol
		samples[i][1] *= vol
		e.pos++
	}
	return n, ok
}

func (e *envelope) Err() error { return e.s.Err() }
