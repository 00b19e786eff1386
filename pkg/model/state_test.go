package model

import "testing"

func TestRunState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    RunState
		terminal bool
	}{
		{RunStateRunning, false},
		{RunStateCompleted, true},
		{RunStateStopped, true},
		{RunStateFailed, true},
	}
	for _, tt := range tests {
		if got := tt.state.IsTerminal(); got != tt.terminal {
			t.Errorf("RunState(%q).IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
		}
	}
}

func TestRunState_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from  RunState
		to    RunState
		valid bool
	}{
		// Valid transitions
		{RunStateRunning, RunStateCompleted, true},
		{RunStateRunning, RunStateStopped, true},
		{RunStateRunning, RunStateFailed, true},

		// Invalid transitions
		{RunStateRunning, RunStateRunning, false},
		{RunStateCompleted, RunStateRunning, false},
		{RunStateStopped, RunStateFailed, false},
		{RunStateFailed, RunStateCompleted, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.valid {
			t.Errorf("RunState(%q).CanTransitionTo(%q) = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestEventKind_Valid(t *testing.T) {
	for _, k := range []EventKind{EventInitialize, EventFinish, EventInterrupt} {
		if !k.Valid() {
			t.Errorf("%q should be valid", k)
		}
	}
	for _, k := range []EventKind{"", "execute", "INITIALIZE"} {
		if k.Valid() {
			t.Errorf("%q should not be valid", k)
		}
	}
}
