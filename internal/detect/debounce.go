package detect

import "fmt"

// Default debounce parameters.
const (
	// DefaultConfirmations is the number of consecutive ticks that must agree
	// on a label before its video starts.
	DefaultConfirmations = 3

	// DefaultMaxMisses is the number of consecutive ticks without the playing
	// label after which its video stops.
	DefaultMaxMisses = 2
)

// ActionKind enumerates the decisions a [Machine] can take on a tick.
type ActionKind int

const (
	// ActionNone leaves playback untouched.
	ActionNone ActionKind = iota

	// ActionStart starts the video of Action.Label.
	ActionStart

	// ActionSwitch stops the current video (Action.Prev) because a different
	// label (Action.Label) was accepted. The new video is not started; the
	// new label begins accumulating confirmations instead.
	ActionSwitch

	// ActionStop stops the current video (Action.Prev).
	ActionStop
)

// String returns the metric label for k.
func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "none"
	case ActionStart:
		return "start"
	case ActionSwitch:
		return "switch"
	case ActionStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Action is the decision of a single [Machine.Advance] call.
type Action struct {
	Kind ActionKind

	// Label is the label to start (ActionStart) or the label that displaced
	// the playing one (ActionSwitch).
	Label string

	// Prev is the label whose video must stop (ActionSwitch, ActionStop).
	Prev string
}

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a.Kind {
	case ActionStart:
		return fmt.Sprintf("Start(%s)", a.Label)
	case ActionSwitch:
		return fmt.Sprintf("Switch(%s->%s)", a.Prev, a.Label)
	case ActionStop:
		return fmt.Sprintf("Stop(%s)", a.Prev)
	default:
		return "None"
	}
}

// Phase is the coarse state of a [Machine].
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhasePlaying
)

// String returns the lowercase phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhasePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// State is a snapshot of the debounce counters. Counters are never negative
// and reset to zero whenever their owning label changes.
type State struct {
	// Playing reports whether a video is currently playing.
	Playing bool `json:"playing"`

	// Label is the playing label. Empty when Playing is false.
	Label string `json:"label,omitempty"`

	// Misses is the number of consecutive ticks that failed to reconfirm Label.
	Misses int `json:"misses"`

	// Pending is the label accumulating confirmations. Empty when Streak is 0.
	Pending string `json:"pending,omitempty"`

	// Streak is the consecutive-confirmation count for Pending.
	Streak int `json:"streak"`
}

// Phase derives the coarse phase from the counters.
func (s State) Phase() Phase {
	switch {
	case s.Playing:
		return PhasePlaying
	case s.Streak > 0:
		return PhasePending
	default:
		return PhaseIdle
	}
}

// Machine is the detection debounce state machine. It is not safe for
// concurrent use; exactly one goroutine must own it.
type Machine struct {
	confirmations int
	maxMisses     int
	st            State
}

// NewMachine returns an idle Machine that requires confirmations consecutive
// hits to start a video and stops after maxMisses consecutive misses. Values
// below 1 are replaced by [DefaultConfirmations] and [DefaultMaxMisses].
//
// A switch away from the playing label only stops it and leaves the new
// label pending with a streak of 1. The new video therefore starts on the
// next hit at the earliest, even with confirmations == 1, and the reported
// streak never exceeds confirmations.
func NewMachine(confirmations, maxMisses int) *Machine {
	if confirmations < 1 {
		confirmations = DefaultConfirmations
	}
	if maxMisses < 1 {
		maxMisses = DefaultMaxMisses
	}
	return &Machine{confirmations: confirmations, maxMisses: maxMisses}
}

// Advance consumes the filtered result of one tick and returns the action
// the playback layer must carry out.
func (m *Machine) Advance(r Result) Action {
	if m.st.Playing {
		return m.advancePlaying(r)
	}
	return m.advanceIdle(r)
}

func (m *Machine) advancePlaying(r Result) Action {
	playing := m.st.Label
	switch {
	case !r.OK:
		m.st.Misses++
		if m.st.Misses >= m.maxMisses {
			m.st = State{}
			return Action{Kind: ActionStop, Prev: playing}
		}
		return Action{}

	case r.Label == playing:
		m.st.Misses = 0
		return Action{}

	default:
		// The displacing observation counts as the first confirmation of the
		// new label, so it needs one hit fewer than a cold start.
		m.st = State{Pending: r.Label, Streak: 1}
		return Action{Kind: ActionSwitch, Label: r.Label, Prev: playing}
	}
}

func (m *Machine) advanceIdle(r Result) Action {
	if !r.OK {
		m.st = State{}
		return Action{}
	}
	if m.st.Streak > 0 && m.st.Pending == r.Label {
		// After a switch with confirmations == 1 the streak already meets
		// the threshold; it is never counted past it.
		if m.st.Streak < m.confirmations {
			m.st.Streak++
		}
	} else {
		m.st = State{Pending: r.Label, Streak: 1}
	}
	if m.st.Streak >= m.confirmations {
		m.st = State{Playing: true, Label: r.Label}
		return Action{Kind: ActionStart, Label: r.Label}
	}
	return Action{}
}

// Complete records that the playing video ended on its own. The machine
// returns to idle with all counters cleared, whatever the miss streak.
func (m *Machine) Complete() {
	m.st = State{}
}

// Reset returns the machine to idle. It is used when a started video could
// not actually be played, leaving the machine as if it had been stopped.
func (m *Machine) Reset() {
	m.st = State{}
}

// State returns a copy of the current counters.
func (m *Machine) State() State { return m.st }

// Playing reports whether the machine considers a video to be playing.
func (m *Machine) Playing() bool { return m.st.Playing }

// Confirmations returns the configured confirmation count.
func (m *Machine) Confirmations() int { return m.confirmations }

// MaxMisses returns the configured miss limit.
func (m *Machine) MaxMisses() int { return m.maxMisses }
