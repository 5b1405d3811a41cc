package review

import (
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Run lifecycle states. Untyped string constants for statekit.StateID
// compatibility.
const (
	StatePending    = "pending"
	StatePrompting  = "prompting"
	StateAwaitingAI = "awaiting_ai"
	StateParsing    = "parsing"
	StatePersisting = "persisting"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// Run lifecycle events.
const (
	EventBuild    = "build"
	EventInvoke   = "invoke"
	EventParse    = "parse"
	EventPersist  = "persist"
	EventComplete = "complete"
	EventFail     = "fail"
)

// RunContext carries state data for one review run.
type RunContext struct {
	ReviewID   string
	DocumentID string
}

// RunStateMachine enforces the legal phase ordering of a review run:
// pending → prompting → awaiting_ai → parsing → persisting → completed,
// with failed reachable from every non-terminal state.
type RunStateMachine struct {
	interpreter *statekit.Interpreter[RunContext]
}

// NewRunStateMachine builds the run FSM starting in the pending state.
func NewRunStateMachine(reviewID, documentID string) (*RunStateMachine, error) {
	builder := statekit.NewMachine[RunContext]("review-run").
		WithInitial(statekit.StateID(StatePending)).
		WithContext(RunContext{ReviewID: reviewID, DocumentID: documentID})

	builder.State(StatePending).
		On(EventBuild).Target(StatePrompting).
		On(EventFail).Target(StateFailed).
		Done()

	builder.State(StatePrompting).
		On(EventInvoke).Target(StateAwaitingAI).
		On(EventFail).Target(StateFailed).
		Done()

	builder.State(StateAwaitingAI).
		On(EventParse).Target(StateParsing).
		On(EventFail).Target(StateFailed).
		Done()

	builder.State(StateParsing).
		On(EventPersist).Target(StatePersisting).
		On(EventFail).Target(StateFailed).
		Done()

	// Persisting completes even when note creation degrades; the result
	// carries the degradation, the run itself still finishes.
	builder.State(StatePersisting).
		On(EventComplete).Target(StateCompleted).
		Done()

	builder.State(StateCompleted).Done()
	builder.State(StateFailed).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build run state machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()

	return &RunStateMachine{interpreter: interpreter}, nil
}

// Transition attempts to advance the run with the given event.
func (sm *RunStateMachine) Transition(event string) error {
	before := sm.Current()
	sm.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	after := sm.Current()

	if before != after {
		return nil
	}
	return fmt.Errorf("event %q is not allowed while the run is in the %q state", event, before)
}

// Current returns the run's current state.
func (sm *RunStateMachine) Current() string {
	return string(sm.interpreter.State().Value)
}

// IsTerminal reports whether the run has reached completed or failed.
func (sm *RunStateMachine) IsTerminal() bool {
	s := sm.Current()
	return s == StateCompleted || s == StateFailed
}
