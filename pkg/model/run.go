package model

import "time"

// Run is one execution of a robot program by the driver loop.
type Run struct {
	ID        string     `json:"id"`
	Program   string     `json:"program"`
	State     RunState   `json:"state"`
	Ticks     uint64     `json:"ticks"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// CommandEvent records one lifecycle transition of a scheduled command.
type CommandEvent struct {
	ID      int64     `json:"id"`
	RunID   string    `json:"run_id"`
	Tick    uint64    `json:"tick"`
	Command string    `json:"command"`
	Event   EventKind `json:"event"`
	// Cause is the command whose scheduling interrupted this one, if any.
	Cause string    `json:"cause,omitempty"`
	At    time.Time `json:"at"`
}

// Ownership records which running command owns a subsystem.
type Ownership struct {
	Subsystem string `json:"subsystem"`
	Command   string `json:"command"`
}

// SchedulerSnapshot is the API view of the scheduler after a tick.
type SchedulerSnapshot struct {
	RunID     string      `json:"run_id,omitempty"`
	Tick      uint64      `json:"tick"`
	Disabled  bool        `json:"disabled"`
	Running   []string    `json:"running"`
	Owners    []Ownership `json:"owners"`
	Timestamp time.Time   `json:"timestamp"`
}

// StationState is the operator input state: the robot enable signal and the
// named buttons.
type StationState struct {
	Enabled bool            `json:"enabled" yaml:"enabled"`
	Buttons map[string]bool `json:"buttons" yaml:"buttons"`
}
