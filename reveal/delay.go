package reveal

import (
	"math"
	"time"
	"unicode/utf8"
)

// DefaultInterval is the per-character reveal cadence.
const DefaultInterval = 40 * time.Millisecond

// MaxDelay caps both the reveal interval and any extra pause.
const MaxDelay = time.Minute

// DelayTable maps a character to the extra pause that follows it once it has
// been revealed. Characters missing from the table add no pause.
type DelayTable map[rune]time.Duration

// DefaultDelays returns the punctuation pauses used when none are configured.
func DefaultDelays() DelayTable {
	return DelayTable{
		'.': 300 * time.Millisecond,
		'!': 300 * time.Millisecond,
		'?': 300 * time.Millisecond,
		':': 200 * time.Millisecond,
		';': 200 * time.Millisecond,
		',': 150 * time.Millisecond,
	}
}

// Lookup returns the extra pause after r. Negative entries count as zero
// and long ones are capped at MaxDelay.
func (t DelayTable) Lookup(r rune) time.Duration {
	return clampDelay(t[r])
}

func clampDelay(d time.Duration) time.Duration {
	switch {
	case d < 0:
		return 0
	case d > MaxDelay:
		return MaxDelay
	}
	return d
}

// DelaysFromMillis builds a DelayTable from a config-style map of single
// character keys to milliseconds. Keys that are not exactly one character
// are returned in skipped. Negative, NaN and infinite values become zero;
// values above MaxDelay are capped.
func DelaysFromMillis(m map[string]float64) (table DelayTable, skipped []string) {
	table = make(DelayTable, len(m))
	for k, ms := range m {
		r, size := utf8.DecodeRuneInString(k)
		if size == 0 || size != len(k) || r == utf8.RuneError {
			skipped = append(skipped, k)
			continue
		}
		table[r] = millis(ms)
	}
	return table, skipped
}

func millis(ms float64) time.Duration {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms <= 0 {
		return 0
	}
	if ms >= float64(MaxDelay/time.Millisecond) {
		return MaxDelay
	}
	return time.Duration(ms * float64(time.Millisecond))
}
