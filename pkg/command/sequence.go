package command

// Sequence runs its children one after another. When a child finishes it is
// ended and the next child is initialized in the same tick; the next child
// first executes on the following tick.
type Sequence struct {
	Base
	commands []Command
	index    int
}

// NewSequence composes cmds into a sequence. Children may share requirements.
func NewSequence(cmds ...Command) (*Sequence, error) {
	s := &Sequence{index: -1}
	s.initGroup("SequentialCommandGroup")
	if err := s.AddCommands(cmds...); err != nil {
		return nil, err
	}
	return s, nil
}

// AddCommands appends children. It fails while the sequence is running.
func (s *Sequence) AddCommands(cmds ...Command) error {
	if s.index != -1 {
		return usageError(s, "commands cannot be added to a composition while it is running")
	}
	if err := s.adopt(false, cmds...); err != nil {
		return err
	}
	s.commands = append(s.commands, cmds...)
	return nil
}

func (s *Sequence) Initialize() {
	s.index = 0
	if len(s.commands) > 0 {
		s.commands[0].Initialize()
	}
}

func (s *Sequence) Execute() {
	if s.index < 0 || s.index >= len(s.commands) {
		return
	}
	current := s.commands[s.index]
	current.Execute()
	if current.IsFinished() {
		current.End(false)
		s.index++
		if s.index < len(s.commands) {
			s.commands[s.index].Initialize()
		}
	}
}

func (s *Sequence) IsFinished() bool {
	return s.index == len(s.commands)
}

func (s *Sequence) End(interrupted bool) {
	if interrupted && s.index >= 0 && s.index < len(s.commands) {
		s.commands[s.index].End(true)
	}
	s.index = -1
}
