package command

// Subsystem is an exclusive-ownership marker for a physical resource.
// Implementations are compared by identity and should be pointers.
type Subsystem interface {
	Name() string
	// Periodic is called once per tick, before triggers are polled.
	Periodic()
}

// DisabledPolicy is implemented by subsystems that decide whether commands
// requiring them may run while the robot is disabled.
type DisabledPolicy interface {
	CommandsRunWhenDisabled() bool
}

// SubsystemBase is an embeddable Subsystem implementation.
type SubsystemBase struct {
	name            string
	blockOnDisabled bool
}

// NewSubsystemBase returns a SubsystemBase with the given name.
func NewSubsystemBase(name string) SubsystemBase {
	return SubsystemBase{name: name}
}

// Name returns the subsystem name.
func (s *SubsystemBase) Name() string {
	if s.name == "" {
		return "Subsystem"
	}
	return s.name
}

// SetName sets the subsystem name.
func (s *SubsystemBase) SetName(name string) {
	s.name = name
}

// Periodic does nothing.
func (s *SubsystemBase) Periodic() {}

// CommandsRunWhenDisabled implements DisabledPolicy.
func (s *SubsystemBase) CommandsRunWhenDisabled() bool {
	return !s.blockOnDisabled
}

// SetCommandsRunWhenDisabled sets the policy reported through DisabledPolicy.
// Commands that set their flag explicitly are not affected.
func (s *SubsystemBase) SetCommandsRunWhenDisabled(v bool) {
	s.blockOnDisabled = !v
}
