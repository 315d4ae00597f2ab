package story

import (
	"errors"
	"fmt"
)

// State is a step of the ingestion pipeline.
type State string

const (
	// StateReceived is the entry state for every upload.
	StateReceived State = "RECEIVED"
	// StateClassified means the media kind is known.
	StateClassified State = "CLASSIFIED"
	// StateValidated means a video passed the probe.
	StateValidated State = "VALIDATED"
	// StateNeedsTrim means a video is longer than the limit.
	StateNeedsTrim State = "NEEDS_TRIM"
	// StateNoTrimNeeded means a video fits the limit.
	StateNoTrimNeeded State = "NO_TRIM_NEEDED"
	// StateDegradedSave means the original upload is being saved after a failure.
	StateDegradedSave State = "DEGRADED_SAVE"
	// StatePersisted is the successful terminal state.
	StatePersisted State = "PERSISTED"
	// StateFailed is reached only when the degraded save itself fails.
	StateFailed State = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
// DEGRADED_SAVE is reachable from every non-terminal state.
var validTransitions = map[State][]State{
	StateReceived:     {StateClassified, StateDegradedSave},
	StateClassified:   {StateValidated, StatePersisted, StateDegradedSave},
	StateValidated:    {StateNeedsTrim, StateNoTrimNeeded, StateDegradedSave},
	StateNeedsTrim:    {StatePersisted, StateDegradedSave},
	StateNoTrimNeeded: {StatePersisted, StateDegradedSave},
	StateDegradedSave: {StatePersisted, StateFailed},
	StatePersisted:    {},
	StateFailed:       {},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for PERSISTED and FAILED.
func (s State) IsTerminal() bool {
	return s == StatePersisted || s == StateFailed
}

// pipeline tracks one upload's progress through the states.
// It is owned by a single request and needs no locking.
type pipeline struct {
	state   State
	history []State
}

func newPipeline() *pipeline {
	return &pipeline{state: StateReceived, history: []State{StateReceived}}
}

// to moves the pipeline to next, rejecting transitions not in the table.
func (p *pipeline) to(next State) error {
	if !canTransition(p.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.state, next)
	}
	p.state = next
	p.history = append(p.history, next)
	return nil
}
