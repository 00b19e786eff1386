package command

// Parallel runs its children together and finishes when all of them have
// finished. A child that finishes early is ended and not executed again.
type Parallel struct {
	Base
	commands []Command
	running  []bool
	active   bool
}

// NewParallel composes cmds into a parallel group. Children may not share a
// requirement.
func NewParallel(cmds ...Command) (*Parallel, error) {
	p := &Parallel{}
	p.initGroup("ParallelCommandGroup")
	if err := p.AddCommands(cmds...); err != nil {
		return nil, err
	}
	return p, nil
}

// AddCommands adds children. It fails while the group is running.
func (p *Parallel) AddCommands(cmds ...Command) error {
	if p.active {
		return usageError(p, "commands cannot be added to a composition while it is running")
	}
	if err := p.adopt(true, cmds...); err != nil {
		return err
	}
	p.commands = append(p.commands, cmds...)
	p.running = append(p.running, make([]bool, len(cmds))...)
	return nil
}

func (p *Parallel) Initialize() {
	p.active = true
	for i, c := range p.commands {
		p.running[i] = true
		c.Initialize()
	}
}

func (p *Parallel) Execute() {
	for i, c := range p.commands {
		if !p.running[i] {
			continue
		}
		c.Execute()
		if c.IsFinished() {
			c.End(false)
			p.running[i] = false
		}
	}
}

func (p *Parallel) IsFinished() bool {
	for _, r := range p.running {
		if r {
			return false
		}
	}
	return true
}

func (p *Parallel) End(interrupted bool) {
	for i, c := range p.commands {
		if p.running[i] {
			c.End(true)
			p.running[i] = false
		}
	}
	p.active = false
}

// Race runs its children together and finishes as soon as any child finishes.
// Children that finished are ended normally; all others are interrupted.
type Race struct {
	Base
	commands []Command
	won      []bool
	finished bool
	active   bool
}

// NewRace composes cmds into a race group. Children may not share a
// requirement.
func NewRace(cmds ...Command) (*Race, error) {
	r := &Race{}
	r.initGroup("ParallelRaceGroup")
	if err := r.AddCommands(cmds...); err != nil {
		return nil, err
	}
	return r, nil
}

// AddCommands adds children. It fails while the group is running.
func (r *Race) AddCommands(cmds ...Command) error {
	if r.active {
		return usageError(r, "commands cannot be added to a composition while it is running")
	}
	if err := r.adopt(true, cmds...); err != nil {
		return err
	}
	r.commands = append(r.commands, cmds...)
	r.won = append(r.won, make([]bool, len(cmds))...)
	return nil
}

func (r *Race) Initialize() {
	r.active = true
	r.finished = false
	for i, c := range r.commands {
		r.won[i] = false
		c.Initialize()
	}
}

func (r *Race) Execute() {
	for i, c := range r.commands {
		c.Execute()
		if c.IsFinished() {
			r.won[i] = true
			r.finished = true
		}
	}
}

func (r *Race) IsFinished() bool {
	return r.finished
}

func (r *Race) End(interrupted bool) {
	for i, c := range r.commands {
		c.End(interrupted || !r.won[i])
	}
	r.active = false
}

// Deadline runs its children together and finishes exactly when the deadline
// child finishes. Other children that finish first are ended individually;
// children still running when the deadline finishes are interrupted.
type Deadline struct {
	Base
	deadline Command
	commands []Command
	running  []bool
	finished bool
	active   bool
}

// NewDeadline composes deadline and others into a deadline group. No two
// children may share a requirement.
func NewDeadline(deadline Command, others ...Command) (*Deadline, error) {
	if deadline == nil {
		return nil, &UsageError{Reason: "deadline group needs a deadline command"}
	}
	d := &Deadline{}
	d.initGroup("ParallelDeadlineGroup")
	if err := d.add(append([]Command{deadline}, others...)...); err != nil {
		return nil, err
	}
	d.deadline = deadline
	return d, nil
}

// Deadline returns the command whose completion ends the group.
func (d *Deadline) Deadline() Command {
	return d.deadline
}

// AddCommands adds non-deadline children. It fails while the group is running.
func (d *Deadline) AddCommands(cmds ...Command) error {
	return d.add(cmds...)
}

func (d *Deadline) add(cmds ...Command) error {
	if d.active {
		return usageError(d, "commands cannot be added to a composition while it is running")
	}
	if err := d.adopt(true, cmds...); err != nil {
		return err
	}
	d.commands = append(d.commands, cmds...)
	d.running = append(d.running, make([]bool, len(cmds))...)
	return nil
}

func (d *Deadline) Initialize() {
	d.active = true
	d.finished = false
	for i, c := range d.commands {
		d.running[i] = true
		c.Initialize()
	}
}

func (d *Deadline) Execute() {
	for i, c := range d.commands {
		if !d.running[i] {
			continue
		}
		c.Execute()
		if c.IsFinished() {
			c.End(false)
			d.running[i] = false
			if c == d.deadline {
				d.finished = true
			}
		}
	}
}

func (d *Deadline) IsFinished() bool {
	return d.finished
}

func (d *Deadline) End(interrupted bool) {
	for i, c := range d.commands {
		if d.running[i] {
			c.End(true)
			d.running[i] = false
		}
	}
	d.active = false
}
