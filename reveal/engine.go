// Package reveal implements a typewriter-style text reveal engine.
//
// An Engine takes a source text that may be replaced or extended over time
// (for example, a chat reply arriving token by token) and reveals it one
// character per tick, pausing longer after punctuation. Consumers either poll
// Snapshot or subscribe for change notifications.
package reveal

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
)

// Config configures an Engine. Zero values fall back to defaults.
type Config struct {
	// Interval is the base delay before each character is revealed.
	Interval time.Duration
	// Delays holds the extra pauses after punctuation. A nil table uses
	// DefaultDelays; an empty, non-nil table disables pauses.
	Delays DelayTable
	// Clock schedules ticks. Defaults to SystemClock.
	Clock Clock
	// Logger receives debug output. Defaults to log.Default().
	Logger *log.Logger
	// OnComplete is called once per finished reveal of an ended stream.
	OnComplete func()
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		Delays:   DefaultDelays(),
		Clock:    SystemClock{},
	}
}

// Engine reveals a source text one character at a time.
type Engine struct {
	mu sync.Mutex

	interval   time.Duration
	delays     DelayTable
	clock      Clock
	logger     *log.Logger
	onComplete func()

	// source is the full target; off is the byte length of the revealed
	// prefix and revealed its length in characters.
	source      string
	total       int
	off         int
	revealed    int
	delayed     bool
	endOfStream bool
	completed   bool

	// Every scheduled tick captures gen and is ignored if it has moved on.
	timer Timer
	gen   uint64

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// NewEngine returns an idle engine.
func NewEngine(cfg Config) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	cfg.Interval = min(cfg.Interval, MaxDelay)
	if cfg.Delays == nil {
		cfg.Delays = DefaultDelays()
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Engine{
		interval:   cfg.Interval,
		delays:     cfg.Delays,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		onComplete: cfg.OnComplete,
		subs:       make(map[int]chan struct{}),
	}
}

// SetOnComplete replaces the completion callback.
func (e *Engine) SetOnComplete(fn func()) {
	e.mu.Lock()
	e.onComplete = fn
	e.mu.Unlock()
}

// Update sets the source text and whether the stream behind it has ended.
//
// A text that starts with the already revealed prefix continues the current
// reveal. Anything else is treated as a new message and restarts from zero.
// An empty text resets the engine.
func (e *Engine) Update(text string, endOfStream bool) {
	e.mu.Lock()
	done := e.update(text, endOfStream)
	e.mu.Unlock()

	e.notify()
	if done != nil {
		done()
	}
}

// Reset stops any pending tick and clears all reveal state.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.clear()
	e.mu.Unlock()

	e.notify()
}

// Flush reveals the rest of the current source immediately.
func (e *Engine) Flush() {
	e.mu.Lock()
	var done func()
	if e.off < len(e.source) {
		e.stop()
		e.off = len(e.source)
		e.revealed = e.total
		e.delayed = false
		done = e.complete()
	}
	e.mu.Unlock()

	e.notify()
	if done != nil {
		done()
	}
}

// Snapshot returns the current observable outputs.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		Text:        e.source[:e.off],
		Revealed:    e.revealed,
		Total:       e.total,
		Typing:      e.off < len(e.source),
		Delayed:     e.delayed,
		EndOfStream: e.endOfStream,
		Completed:   e.completed,
		State:       e.state(),
	}
}

// DisplayedText returns the revealed prefix.
func (e *Engine) DisplayedText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source[:e.off]
}

// IsTyping reports whether characters remain to be revealed.
func (e *Engine) IsTyping() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.off < len(e.source)
}

// IsDelayed reports whether the pending tick is waiting out a punctuation
// pause.
func (e *Engine) IsDelayed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.delayed
}

// State returns the engine's current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state()
}

// Subscribe returns a channel that receives a value whenever the observable
// outputs may have changed. Notifications coalesce: a slow reader sees one
// pending value, then polls Snapshot. The returned func unsubscribes and
// closes the channel.
func (e *Engine) Subscribe() (<-chan struct{}, func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	id := e.nextSub
	e.nextSub++
	ch := make(chan struct{}, 1)
	e.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			defer e.subMu.Unlock()
			delete(e.subs, id)
			close(ch)
		})
	}
}

func (e *Engine) notify() {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	for _, ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// update must be called with e.mu held. It returns the completion callback
// if this update finished a reveal.
func (e *Engine) update(text string, endOfStream bool) func() {
	if text == "" {
		e.clear()
		return nil
	}

	if !strings.HasPrefix(text, e.source[:e.off]) {
		e.logger.Debug("reveal replaced", "revealed", e.revealed, "total", utf8.RuneCountInString(text))
		e.stop()
		e.off = 0
		e.revealed = 0
		e.delayed = false
		e.completed = false
	}

	if text != e.source {
		e.source = text
		e.total = utf8.RuneCountInString(text)
		// A chunk may have ended inside a multi-byte character that this
		// text completes; back up to its first byte and reveal it whole.
		for e.off > 0 && e.off < len(text) && !utf8.RuneStart(text[e.off]) {
			e.off--
		}
		e.revealed = utf8.RuneCountInString(text[:e.off])
	}
	e.endOfStream = endOfStream

	if e.off < len(e.source) {
		e.completed = false
		// A pending tick stays valid across a continuation: the revealed
		// prefix, and so its pause, is unchanged.
		if e.timer == nil {
			e.schedule()
		}
		return nil
	}
	return e.complete()
}

// clear must be called with e.mu held.
func (e *Engine) clear() {
	if e.source != "" {
		e.logger.Debug("reveal reset", "revealed", e.revealed, "total", e.total)
	}
	e.stop()
	e.source = ""
	e.total = 0
	e.off = 0
	e.revealed = 0
	e.delayed = false
	e.endOfStream = false
	e.completed = false
}

// stop must be called with e.mu held.
func (e *Engine) stop() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
}

// schedule must be called with e.mu held and characters left to reveal.
func (e *Engine) schedule() {
	var extra time.Duration
	if e.off > 0 {
		last, _ := utf8.DecodeLastRuneInString(e.source[:e.off])
		extra = e.delays.Lookup(last)
	}
	e.delayed = extra > 0

	e.gen++
	gen := e.gen
	e.timer = e.clock.AfterFunc(e.interval+extra, func() { e.tick(gen) })
}

func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.off >= len(e.source) {
		e.mu.Unlock()
		return
	}
	e.timer = nil

	_, size := utf8.DecodeRuneInString(e.source[e.off:])
	e.off += size
	e.revealed++
	e.delayed = false

	var done func()
	if e.off < len(e.source) {
		e.schedule()
	} else {
		done = e.complete()
	}
	e.mu.Unlock()

	e.notify()
	if done != nil {
		done()
	}
}

// complete must be called with e.mu held and the source fully revealed.
func (e *Engine) complete() func() {
	if !e.endOfStream || e.completed || e.source == "" {
		return nil
	}
	e.completed = true
	e.logger.Debug("reveal complete", "total", e.total)
	return e.onComplete
}

// state must be called with e.mu held.
func (e *Engine) state() State {
	switch {
	case e.source == "":
		return StateIdle
	case e.off >= len(e.source):
		return StateDone
	case e.delayed:
		return StateDelayed
	default:
		return StateRevealing
	}
}
