package reveal

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending single-shot callback.
type Timer interface {
	// Stop prevents the timer from firing. It reports whether the call
	// stopped the timer, false if it already fired or was stopped.
	Stop() bool
}

// Clock schedules single-shot callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is a Clock backed by time.AfterFunc.
type SystemClock struct{}

// AfterFunc implements Clock.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualClock is a Clock whose time only moves when told to. It is meant for
// tests: timers fire synchronously from Advance and Step, on the caller's
// goroutine.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Duration
	seq     int
	delay   time.Duration
	f       func()
	stopped bool
}

// NewManualClock returns a ManualClock at time zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// AfterFunc implements Clock.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d < 0 {
		d = 0
	}
	c.seq++
	t := &manualTimer{clock: c, at: c.now + d, seq: c.seq, delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.stopped {
		return false
	}
	for i, pending := range c.timers {
		if pending == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			t.stopped = true
			return true
		}
	}
	return false
}

// Now returns the time elapsed since the clock was created.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// NextDelay returns the delay the earliest pending timer was scheduled with.
func (c *ManualClock) NextDelay() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.earliest()
	if t == nil {
		return 0, false
	}
	return t.delay, true
}

// Advance moves the clock forward by d, firing every timer that comes due
// along the way, including timers scheduled by the callbacks themselves.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		t := c.earliest()
		if t == nil || t.at > target {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.fire(t)
		c.mu.Unlock()
		t.f()
	}
}

// Step jumps to the earliest pending timer and fires it. It returns false
// when nothing is pending.
func (c *ManualClock) Step() bool {
	c.mu.Lock()
	t := c.earliest()
	if t == nil {
		c.mu.Unlock()
		return false
	}
	c.fire(t)
	c.mu.Unlock()
	t.f()
	return true
}

// RunAll steps until no timers remain or limit callbacks have fired. It
// returns the number of callbacks fired.
func (c *ManualClock) RunAll(limit int) int {
	n := 0
	for n < limit && c.Step() {
		n++
	}
	return n
}

// earliest must be called with c.mu held.
func (c *ManualClock) earliest() *manualTimer {
	if len(c.timers) == 0 {
		return nil
	}
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].at == c.timers[j].at {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].at < c.timers[j].at
	})
	return c.timers[0]
}

// fire must be called with c.mu held and t being the earliest timer.
func (c *ManualClock) fire(t *manualTimer) {
	c.timers = c.timers[1:]
	t.stopped = true
	if t.at > c.now {
		c.now = t.at
	}
}
