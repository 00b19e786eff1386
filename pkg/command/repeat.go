package command

// Repeat runs its child forever: whenever the child finishes it is ended and
// immediately initialized again in the same tick. A Repeat never finishes on
// its own.
type Repeat struct {
	Base
	command Command
}

// NewRepeat composes c into a repeating command.
func NewRepeat(c Command) (*Repeat, error) {
	r := &Repeat{command: c}
	r.initGroup("RepeatCommand")
	if err := r.adopt(false, c); err != nil {
		return nil, err
	}
	r.name = "Repeat(" + c.Name() + ")"
	return r, nil
}

func (r *Repeat) Initialize() {
	r.command.Initialize()
}

func (r *Repeat) Execute() {
	r.command.Execute()
	if r.command.IsFinished() {
		r.command.End(false)
		r.command.Initialize()
	}
}

func (r *Repeat) IsFinished() bool {
	return false
}

func (r *Repeat) End(interrupted bool) {
	r.command.End(interrupted)
}
