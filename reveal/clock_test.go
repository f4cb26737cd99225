package reveal_test

import (
	"testing"
	"time"

	"github.com/dgnsrekt/talkbox/reveal"
)

func TestManualClockAdvance(t *testing.T) {
	clock := reveal.NewManualClock()
	var fired []string

	clock.AfterFunc(20*time.Millisecond, func() { fired = append(fired, "b") })
	clock.AfterFunc(10*time.Millisecond, func() { fired = append(fired, "a") })
	clock.AfterFunc(20*time.Millisecond, func() { fired = append(fired, "c") })

	clock.Advance(15 * time.Millisecond)
	if len(fired) != 1 || fired[0] != "a" {
		t.Fatalf("fired = %v, want [a]", fired)
	}
	if clock.Now() != 15*time.Millisecond {
		t.Errorf("Now() = %v, want 15ms", clock.Now())
	}

	clock.Advance(5 * time.Millisecond)
	if len(fired) != 3 || fired[1] != "b" || fired[2] != "c" {
		t.Errorf("fired = %v, want [a b c]", fired)
	}
}

func TestManualClockNestedSchedule(t *testing.T) {
	clock := reveal.NewManualClock()
	count := 0

	var tick func()
	tick = func() {
		count++
		if count < 5 {
			clock.AfterFunc(10*time.Millisecond, tick)
		}
	}
	clock.AfterFunc(10*time.Millisecond, tick)

	clock.Advance(35 * time.Millisecond)
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	clock.Advance(time.Second)
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
}

func TestManualClockStop(t *testing.T) {
	clock := reveal.NewManualClock()
	fired := false
	timer := clock.AfterFunc(time.Millisecond, func() { fired = true })

	if !timer.Stop() {
		t.Error("first Stop should report true")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}
	if clock.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", clock.Pending())
	}

	clock.Advance(time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestManualClockStep(t *testing.T) {
	clock := reveal.NewManualClock()
	if clock.Step() {
		t.Error("Step on an empty clock should report false")
	}

	timer := clock.AfterFunc(50*time.Millisecond, func() {})
	if d, ok := clock.NextDelay(); !ok || d != 50*time.Millisecond {
		t.Errorf("NextDelay() = %v, %v", d, ok)
	}
	if !clock.Step() {
		t.Fatal("Step should fire the pending timer")
	}
	if clock.Now() != 50*time.Millisecond {
		t.Errorf("Now() = %v, want 50ms", clock.Now())
	}
	if timer.Stop() {
		t.Error("Stop after firing should report false")
	}
}
