package command

// Conditional evaluates its condition once, at Initialize, and then runs only
// the selected branch. It requires the union of both branches' requirements.
type Conditional struct {
	Base
	onTrue    Command
	onFalse   Command
	condition func() bool
	selected  Command
}

// NewConditional composes onTrue and onFalse behind condition.
func NewConditional(onTrue, onFalse Command, condition func() bool) (*Conditional, error) {
	if condition == nil {
		return nil, &UsageError{Reason: "conditional command needs a condition"}
	}
	c := &Conditional{onTrue: onTrue, onFalse: onFalse, condition: condition}
	c.initGroup("ConditionalCommand")
	if err := c.adopt(false, onTrue, onFalse); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Conditional) Initialize() {
	if c.condition() {
		c.selected = c.onTrue
	} else {
		c.selected = c.onFalse
	}
	c.selected.Initialize()
}

func (c *Conditional) Execute() {
	if c.selected != nil {
		c.selected.Execute()
	}
}

func (c *Conditional) IsFinished() bool {
	return c.selected == nil || c.selected.IsFinished()
}

func (c *Conditional) End(interrupted bool) {
	if c.selected != nil {
		c.selected.End(interrupted)
	}
	c.selected = nil
}

// Select picks one of several commands by key at Initialize. A key with no
// matching command selects a command that finishes immediately.
type Select[K comparable] struct {
	Base
	selector func() K
	choices  map[K]Command
	fallback Command
	selected Command
}

// NewSelect composes the commands in choices behind selector.
func NewSelect[K comparable](selector func() K, choices map[K]Command) (*Select[K], error) {
	if selector == nil {
		return nil, &UsageError{Reason: "select command needs a selector"}
	}
	s := &Select[K]{
		selector: selector,
		choices:  make(map[K]Command, len(choices)),
		fallback: NewInstant(nil),
	}
	s.initGroup("SelectCommand")
	cmds := make([]Command, 0, len(choices))
	for k, c := range choices {
		s.choices[k] = c
		cmds = append(cmds, c)
	}
	if err := s.adopt(false, cmds...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Select[K]) Initialize() {
	c, ok := s.choices[s.selector()]
	if !ok {
		c = s.fallback
	}
	s.selected = c
	c.Initialize()
}

func (s *Select[K]) Execute() {
	if s.selected != nil {
		s.selected.Execute()
	}
}

func (s *Select[K]) IsFinished() bool {
	return s.selected == nil || s.selected.IsFinished()
}

func (s *Select[K]) End(interrupted bool) {
	if s.selected != nil {
		s.selected.End(interrupted)
	}
	s.selected = nil
}
