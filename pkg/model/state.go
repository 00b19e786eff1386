package model

// RunState represents the lifecycle state of a robot program run.
type RunState string

const (
	RunStateRunning   RunState = "RUNNING"
	RunStateCompleted RunState = "COMPLETED"
	RunStateStopped   RunState = "STOPPED"
	RunStateFailed    RunState = "FAILED"
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true if the run is in a final state.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateCompleted, RunStateStopped, RunStateFailed:
		return true
	}
	return false
}

// ValidRunTransitions defines the allowed state transitions for Runs.
var ValidRunTransitions = map[RunState][]RunState{
	RunStateRunning: {RunStateCompleted, RunStateStopped, RunStateFailed},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s RunState) CanTransitionTo(next RunState) bool {
	for _, allowed := range ValidRunTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// EventKind identifies a command lifecycle transition.
type EventKind string

const (
	EventInitialize EventKind = "initialize"
	EventFinish     EventKind = "finish"
	EventInterrupt  EventKind = "interrupt"
)

// Valid reports whether k is a known lifecycle event.
func (k EventKind) Valid() bool {
	switch k {
	case EventInitialize, EventFinish, EventInterrupt:
		return true
	}
	return false
}
