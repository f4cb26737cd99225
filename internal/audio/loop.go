package audio

import (
	"errors"
	"io"
	"sync"
	"time"
)

// loopReader repeats the first loop bytes of pcm forever. Seeking is
// relative to the looped region.
type loopReader struct {
	mu   sync.Mutex
	pcm  []byte
	pos  int
	loop int
}

// newLoopReader returns a reader over pcm that wraps after length. A
// non-positive length loops the whole clip.
func newLoopReader(pcm []byte, length time.Duration) *loopReader {
	n := len(pcm)
	if length > 0 {
		if b := rate.N(length) * bytesPerFrame; b < n {
			n = b
		}
	}
	return &loopReader{pcm: pcm, loop: n}
}

func (l *loopReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loop == 0 {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) {
		c := copy(p[n:], l.pcm[l.pos:l.loop])
		n += c
		l.pos += c
		if l.pos >= l.loop {
			l.pos = 0
		}
	}
	return n, nil
}

func (l *loopReader) Seek(offset int64, whence int) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(l.pos) + offset
	case io.SeekEnd:
		abs = int64(l.loop) + offset
	default:
		return 0, errors.New("audio: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("audio: negative position")
	}
	if l.loop > 0 {
		abs %= int64(l.loop)
	}
	abs -= abs % bytesPerFrame
	l.pos = int(abs)
	return abs, nil
}
