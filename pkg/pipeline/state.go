package pipeline

import (
	"errors"
	"time"

	"github.com/sipeed/picocast/pkg/failure"
)

// State is a stage of a run. Runs move strictly forward through the stages and
// end in Done or Failed.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateValidating
	StateTruncating
	StateGenerating
	StateSynthesizing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateAcquiring:    "acquiring",
	StateValidating:   "validating",
	StateTruncating:   "truncating",
	StateGenerating:   "generating",
	StateSynthesizing: "synthesizing",
	StateDone:         "done",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Transition is delivered to observers on every state change. Err is set only
// when To is StateFailed.
//
// From names the stage that was running, not the component that rejected the
// run. URL checks happen while the page is fetched, so a blocked URL fails
// From StateAcquiring with Component "security". Use Component to attribute
// failures.
type Transition struct {
	RunID string
	From  State
	To    State
	At    time.Time
	Err   error
}

// Component returns the component that raised Err, or "" when Err is nil or
// unclassified.
func (t Transition) Component() string {
	var fe *failure.Error
	if errors.As(t.Err, &fe) {
		return fe.Component
	}
	return ""
}

// Observer is called synchronously on the run's goroutine.
type Observer func(Transition)
