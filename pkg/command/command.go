// Package command implements a cooperative, single-threaded command scheduler
// for robot control programs.
//
// A Command is a unit of behavior with an Initialize/Execute/IsFinished/End
// lifecycle. Commands declare the Subsystems they need exclusive use of, and
// the Scheduler guarantees that at most one running command owns a subsystem at
// any time. Commands are aggregated only through compositions (Sequence,
// Parallel, Race, Deadline, Conditional, Select, Repeat); a command absorbed by
// a composition can no longer be scheduled on its own.
//
// Nothing in this package is safe for concurrent use. The robot loop calls
// Scheduler.Run once per control cycle from a single goroutine, and every
// Schedule/Cancel call must come from that same goroutine.
package command

// InterruptionBehavior is a command's tolerance for being preempted by another
// command that wants one of its subsystems.
type InterruptionBehavior int

const (
	// CancelSelf lets an incoming command interrupt this one.
	CancelSelf InterruptionBehavior = iota
	// CancelIncoming refuses the incoming command and keeps this one running.
	CancelIncoming
)

// String returns the string representation of the behavior.
func (b InterruptionBehavior) String() string {
	switch b {
	case CancelSelf:
		return "cancel_self"
	case CancelIncoming:
		return "cancel_incoming"
	}
	return "unknown"
}

// Command is the capability set the Scheduler drives.
//
// Implementations embed Base, which supplies metadata and no-op lifecycle
// methods, override the lifecycle methods they need, and are used by pointer.
type Command interface {
	// Initialize is called once each time the command is scheduled.
	Initialize()
	// Execute is called once per tick while the command is running.
	Execute()
	// IsFinished is polled after Execute; returning true ends the command.
	IsFinished() bool
	// End is called once when the command finishes or is interrupted.
	End(interrupted bool)

	Name() string
	Requirements() []Subsystem
	HasRequirement(s Subsystem) bool
	InterruptionBehavior() InterruptionBehavior
	RunsWhenDisabled() bool

	base() *Base
}

type disabledMode int

const (
	disabledDerived disabledMode = iota
	disabledAllowed
	disabledBlocked
)

// Base holds the static metadata of a command. The zero value is a command
// named "Command" with no requirements that is interruptible and runs while the
// robot is disabled unless one of its requirements forbids it.
type Base struct {
	name         string
	requirements []Subsystem
	behavior     InterruptionBehavior
	disabled     disabledMode
	composed     bool
	scheduled    bool
}

func (b *Base) base() *Base { return b }

// Initialize does nothing.
func (b *Base) Initialize() {}

// Execute does nothing.
func (b *Base) Execute() {}

// IsFinished reports false, so a bare command runs until canceled.
func (b *Base) IsFinished() bool { return false }

// End does nothing.
func (b *Base) End(interrupted bool) {}

// Name returns the display name of the command.
func (b *Base) Name() string {
	if b.name == "" {
		return "Command"
	}
	return b.name
}

// SetName sets the display name used in logs and telemetry.
func (b *Base) SetName(name string) {
	b.name = name
}

// AddRequirements declares subsystems the command needs exclusive use of.
// Nil and duplicate subsystems are ignored.
func (b *Base) AddRequirements(reqs ...Subsystem) {
	for _, r := range reqs {
		if r == nil || b.HasRequirement(r) {
			continue
		}
		b.requirements = append(b.requirements, r)
	}
}

// Requirements returns a copy of the declared requirement set.
func (b *Base) Requirements() []Subsystem {
	out := make([]Subsystem, len(b.requirements))
	copy(out, b.requirements)
	return out
}

// HasRequirement reports whether s is one of the command's requirements.
func (b *Base) HasRequirement(s Subsystem) bool {
	for _, r := range b.requirements {
		if r == s {
			return true
		}
	}
	return false
}

// InterruptionBehavior returns the command's interruption policy.
func (b *Base) InterruptionBehavior() InterruptionBehavior {
	return b.behavior
}

// SetInterruptionBehavior sets the command's interruption policy.
func (b *Base) SetInterruptionBehavior(ib InterruptionBehavior) {
	b.behavior = ib
}

// RunsWhenDisabled reports whether the command may run while the robot is
// disabled. Unless set explicitly, it is true unless a required subsystem
// implements DisabledPolicy and refuses.
func (b *Base) RunsWhenDisabled() bool {
	switch b.disabled {
	case disabledAllowed:
		return true
	case disabledBlocked:
		return false
	}
	for _, r := range b.requirements {
		if p, ok := r.(DisabledPolicy); ok && !p.CommandsRunWhenDisabled() {
			return false
		}
	}
	return true
}

// SetRunsWhenDisabled overrides the derived run-when-disabled flag.
func (b *Base) SetRunsWhenDisabled(v bool) {
	if v {
		b.disabled = disabledAllowed
	} else {
		b.disabled = disabledBlocked
	}
}

// IsComposed reports whether c has been absorbed by a composition.
func IsComposed(c Command) bool {
	return c != nil && c.base().composed
}
