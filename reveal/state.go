package reveal

// State is the engine's position in its reveal cycle.
type State int

const (
	// StateIdle means there is no source text.
	StateIdle State = iota
	// StateRevealing means characters remain and the next tick is on the
	// base cadence.
	StateRevealing
	// StateDelayed means characters remain and the next tick carries a
	// punctuation pause.
	StateDelayed
	// StateDone means the whole source text is revealed.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRevealing:
		return "revealing"
	case StateDelayed:
		return "delayed"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent view of the engine's observable outputs.
type Snapshot struct {
	// Text is the revealed prefix.
	Text string
	// Revealed and Total count characters, not bytes.
	Revealed int
	Total    int

	Typing      bool
	Delayed     bool
	EndOfStream bool
	Completed   bool
	State       State
}

// Progress returns the revealed fraction in [0, 1].
func (s Snapshot) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Revealed) / float64(s.Total)
}
