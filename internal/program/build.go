package program

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/me/botsched/internal/expr"
	"github.com/me/botsched/pkg/command"
	"github.com/me/botsched/pkg/model"
)

// Inputs supplies operator state to condition expressions.
type Inputs interface {
	State() model.StationState
}

// Options configures Build.
type Options struct {
	Inputs Inputs        // Operator state; nil reads as disabled with no buttons
	Out    io.Writer     // Destination of print commands (default os.Stdout)
	Clock  command.Clock // Time source of wait commands (default system clock)
	Logger *slog.Logger
}

// Robot is a program built onto a scheduler: its mechanisms are registered,
// default commands set and bindings installed.
type Robot struct {
	program    *Program
	sched      *command.Scheduler
	mechanisms []*Mechanism
	byName     map[string]*Mechanism
	eval       *expr.Evaluator
	inputs     Inputs
	out        io.Writer
	clock      command.Clock
	logger     *slog.Logger

	// Templates being instantiated, innermost last.
	building []string
}

// configurable is implemented by every command that embeds command.Base.
type configurable interface {
	SetName(string)
	AddRequirements(...command.Subsystem)
	SetInterruptionBehavior(command.InterruptionBehavior)
	SetRunsWhenDisabled(bool)
}

// Build validates p and wires it onto sched.
func Build(p *Program, sched *command.Scheduler, opts Options) (*Robot, error) {
	if err := Validate(p); err != nil {
		return nil, err
	}
	eval, err := expr.NewEvaluator(p.Lib)
	if err != nil {
		return nil, fmt.Errorf("expression library: %w", err)
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Clock == nil {
		opts.Clock = command.SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &Robot{
		program: p,
		sched:   sched,
		byName:  make(map[string]*Mechanism, len(p.Subsystems)),
		eval:    eval,
		inputs:  opts.Inputs,
		out:     opts.Out,
		clock:   opts.Clock,
		logger:  opts.Logger.With("component", "program", "program", p.Name),
	}

	for _, spec := range p.Subsystems {
		m := newMechanism(spec.Name)
		if spec.RunsWhenDisabled != nil {
			m.SetCommandsRunWhenDisabled(*spec.RunsWhenDisabled)
		}
		r.mechanisms = append(r.mechanisms, m)
		r.byName[spec.Name] = m
		sched.RegisterSubsystem(m)
	}

	for _, spec := range p.Subsystems {
		if spec.Default == "" {
			continue
		}
		c, err := r.Instantiate(spec.Default)
		if err != nil {
			return nil, fmt.Errorf("subsystem %s default: %w", spec.Name, err)
		}
		if err := sched.SetDefaultCommand(r.byName[spec.Name], c); err != nil {
			return nil, fmt.Errorf("subsystem %s default: %w", spec.Name, err)
		}
	}

	for i, b := range p.Bindings {
		cond, err := expr.Compile(b.When)
		if err != nil {
			return nil, fmt.Errorf("bindings[%d]: %w", i, err)
		}
		action, err := command.ParseTriggerAction(b.Action)
		if err != nil {
			return nil, fmt.Errorf("bindings[%d]: %w", i, err)
		}
		target, err := r.Instantiate(b.Command)
		if err != nil {
			return nil, fmt.Errorf("bindings[%d]: %w", i, err)
		}
		if err := sched.BindTrigger(r.condition(cond), action, target); err != nil {
			return nil, fmt.Errorf("bindings[%d]: %w", i, err)
		}
	}

	r.logger.Info("program built",
		"subsystems", len(p.Subsystems), "templates", len(p.Commands), "bindings", len(p.Bindings))
	return r, nil
}

// Program returns the program the robot was built from.
func (r *Robot) Program() *Program {
	return r.program
}

// Mechanism returns the named subsystem, or nil.
func (r *Robot) Mechanism(name string) *Mechanism {
	return r.byName[name]
}

// Mechanisms returns the subsystems in declaration order.
func (r *Robot) Mechanisms() []*Mechanism {
	return slices.Clone(r.mechanisms)
}

// Outputs returns a copy of every mechanism's outputs.
func (r *Robot) Outputs() map[string]map[string]any {
	out := make(map[string]map[string]any, len(r.mechanisms))
	for _, m := range r.mechanisms {
		out[m.Name()] = m.Outputs()
	}
	return out
}

// Context returns the state condition expressions are evaluated against.
func (r *Robot) Context() *expr.Context {
	ctx := expr.NewContext()
	if r.inputs != nil {
		st := r.inputs.State()
		ctx.Enabled = st.Enabled
		if st.Buttons != nil {
			ctx.Buttons = st.Buttons
		}
	}
	ctx.Tick = r.sched.Tick()
	ctx.Outputs = r.Outputs()
	return ctx
}

// ScheduleAutonomous schedules the program's autonomous command, if any.
func (r *Robot) ScheduleAutonomous() error {
	if r.program.Autonomous == "" {
		return nil
	}
	c, err := r.Instantiate(r.program.Autonomous)
	if err != nil {
		return err
	}
	return r.sched.Schedule(c)
}

// Instantiate builds a fresh command from the named template. Every call
// returns a new command, so a template may appear in several compositions.
func (r *Robot) Instantiate(name string) (command.Command, error) {
	spec, ok := r.program.Commands[name]
	if !ok {
		return nil, fmt.Errorf("unknown command template %q", name)
	}
	if slices.Contains(r.building, name) {
		return nil, fmt.Errorf("template reference cycle: %s -> %s", strings.Join(r.building, " -> "), name)
	}
	r.building = append(r.building, name)
	defer func() { r.building = r.building[:len(r.building)-1] }()

	return r.build(spec, name)
}

func (r *Robot) condition(c *expr.Condition) func() bool {
	return func() bool {
		ok, err := r.eval.Bool(c, r.Context())
		if err != nil {
			r.logger.Warn("condition evaluation failed", "condition", c.String(), "error", err)
			return false
		}
		return ok
	}
}

func (r *Robot) compile(src string) (func() bool, error) {
	c, err := expr.Compile(src)
	if err != nil {
		return nil, err
	}
	return r.condition(c), nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (r *Robot) buildAll(specs []*CommandSpec) ([]command.Command, error) {
	out := make([]command.Command, 0, len(specs))
	for _, spec := range specs {
		c, err := r.build(spec, "")
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// writer returns a function applying output values to their mechanisms, and
// the mechanisms it writes to.
func (r *Robot) writer(output map[string]map[string]any) (func(), []command.Subsystem) {
	var subs []command.Subsystem
	for name := range output {
		subs = append(subs, r.byName[name])
	}
	slices.SortFunc(subs, func(a, b command.Subsystem) int { return strings.Compare(a.Name(), b.Name()) })
	return func() {
		for name, values := range output {
			r.byName[name].Set(values)
		}
	}, subs
}

// build instantiates spec. name is the template name when spec is a template
// root, and empty for inline commands.
func (r *Robot) build(spec *CommandSpec, name string) (command.Command, error) {
	if spec == nil {
		return nil, fmt.Errorf("empty command")
	}

	var (
		c   command.Command
		err error
	)
	switch spec.Kind {
	case KindPrint:
		c = command.NewPrint(r.out, spec.Message)
	case KindWait:
		c = command.NewWait(seconds(spec.Seconds), r.clock)
	case KindWaitUntil:
		var cond func() bool
		if cond, err = r.compile(spec.Condition); err == nil {
			c = command.NewWaitUntil(cond)
		}
	case KindInstant:
		fn, subs := r.writer(spec.Output)
		c = command.NewInstant(fn, subs...)
	case KindRun:
		fn, subs := r.writer(spec.Output)
		c = command.NewRun(fn, subs...)
	case KindRef:
		c, err = r.Instantiate(spec.Ref)
	case KindSequence, KindParallel, KindRace:
		var kids []command.Command
		if kids, err = r.buildAll(spec.Steps); err == nil {
			switch spec.Kind {
			case KindSequence:
				c, err = command.NewSequence(kids...)
			case KindParallel:
				c, err = command.NewParallel(kids...)
			default:
				c, err = command.NewRace(kids...)
			}
		}
	case KindDeadline:
		var deadline command.Command
		if deadline, err = r.build(spec.Deadline, ""); err == nil {
			var kids []command.Command
			if kids, err = r.buildAll(spec.Steps); err == nil {
				c, err = command.NewDeadline(deadline, kids...)
			}
		}
	case KindConditional:
		c, err = r.buildConditional(spec)
	case KindRepeat:
		var child command.Command
		if child, err = r.build(spec.Command, ""); err == nil {
			c, err = command.NewRepeat(child)
		}
	case KindProxy:
		var target command.Command
		if target, err = r.build(spec.Command, ""); err == nil {
			c, err = command.NewProxy(r.sched, target)
		}
	default:
		err = fmt.Errorf("unknown command kind %q", spec.Kind)
	}
	if err != nil {
		return nil, err
	}

	return r.decorate(c, spec, name)
}

func (r *Robot) buildConditional(spec *CommandSpec) (command.Command, error) {
	cond, err := r.compile(spec.Condition)
	if err != nil {
		return nil, err
	}
	onTrue, err := r.build(spec.OnTrue, "")
	if err != nil {
		return nil, err
	}
	onFalse, err := r.build(spec.OnFalse, "")
	if err != nil {
		return nil, err
	}
	return command.NewConditional(onTrue, onFalse, cond)
}

// decorate applies the fields common to every kind. Until and timeout wrap
// the command in a race, so the remaining metadata is applied to the race.
func (r *Robot) decorate(c command.Command, spec *CommandSpec, name string) (command.Command, error) {
	inner := c.Name()
	if spec.Name != "" {
		inner = spec.Name
	} else if name != "" {
		inner = name
	}

	if cc, ok := c.(configurable); ok {
		cc.SetName(inner)
	}
	if spec.Until != "" {
		cond, err := r.compile(spec.Until)
		if err != nil {
			return nil, err
		}
		if c, err = command.Until(c, cond); err != nil {
			return nil, err
		}
	}
	if spec.Timeout > 0 {
		var err error
		if c, err = command.WithTimeout(c, seconds(spec.Timeout), r.clock); err != nil {
			return nil, err
		}
	}

	cc, ok := c.(configurable)
	if !ok {
		return c, nil
	}
	cc.SetName(inner)
	for _, req := range spec.Requires {
		if m := r.byName[req]; m != nil {
			cc.AddRequirements(m)
		}
	}
	if spec.Interruptible != nil {
		if *spec.Interruptible {
			cc.SetInterruptionBehavior(command.CancelSelf)
		} else {
			cc.SetInterruptionBehavior(command.CancelIncoming)
		}
	}
	if spec.RunsWhenDisabled != nil {
		cc.SetRunsWhenDisabled(*spec.RunsWhenDisabled)
	}
	return c, nil
}
