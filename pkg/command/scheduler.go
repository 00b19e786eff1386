package command

import (
	"io"
	"log/slog"
	"slices"
)

// maxArbitrationRounds bounds how often Schedule re-resolves conflicts when the
// End of an interrupted command claims the contested subsystems again.
const maxArbitrationRounds = 8

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for scheduler diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger.With("component", "scheduler")
	}
}

// WithPublisher adds a sink that receives a Snapshot at the end of every Run.
func WithPublisher(p Publisher) Option {
	return func(s *Scheduler) {
		s.publishers = append(s.publishers, p)
	}
}

// Scheduler owns the set of running commands and the subsystem ownership
// table, and drives every running command once per Run.
//
// A Scheduler is meant to be created once by the application entry point and
// passed to whatever code schedules commands. It performs no locking.
type Scheduler struct {
	logger     *slog.Logger
	publishers []Publisher

	subsystems []Subsystem
	defaults   map[Subsystem]Command

	running      []Command
	scheduled    map[Command]struct{}
	requirements map[Subsystem]Command
	ending       map[Command]struct{}

	pending   []Command
	inRunLoop bool

	bindings []*binding
	disabled bool
	tick     uint64

	initActions      []func(Command)
	executeActions   []func(Command)
	finishActions    []func(Command)
	interruptActions []func(cmd, cause Command)
}

// NewScheduler creates an empty scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaults:     make(map[Subsystem]Command),
		scheduled:    make(map[Command]struct{}),
		requirements: make(map[Subsystem]Command),
		ending:       make(map[Command]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule starts c if its requirements can be acquired.
//
// Scheduling a running command does nothing. If any command currently owning
// one of c's requirements is CancelIncoming, the call has no effect; otherwise
// those owners are interrupted and c is initialized. Calls made while Run is
// executing commands are buffered and applied after the execute pass.
//
// An error is returned only for a composed command.
func (s *Scheduler) Schedule(c Command) error {
	if c == nil {
		s.logger.Warn("tried to schedule a nil command")
		return nil
	}
	if c.base().composed {
		return usageError(c, "composed commands may not be scheduled individually")
	}
	if s.inRunLoop {
		if !slices.Contains(s.pending, c) {
			s.pending = append(s.pending, c)
		}
		return nil
	}
	s.schedule(c)
	return nil
}

func (s *Scheduler) schedule(c Command) {
	if s.IsScheduled(c) {
		return
	}
	if s.disabled && !c.RunsWhenDisabled() {
		s.logger.Debug("schedule skipped (robot disabled)", "command", c.Name())
		return
	}

	reqs := c.Requirements()
	for round := 0; ; round++ {
		conflicts := s.conflicts(reqs)
		if len(conflicts) == 0 {
			break
		}
		if round >= maxArbitrationRounds {
			s.logger.Warn("schedule abandoned (requirements keep changing owner)", "command", c.Name())
			return
		}
		for _, owner := range conflicts {
			if owner.InterruptionBehavior() == CancelIncoming {
				s.logger.Debug("schedule refused", "command", c.Name(), "owner", owner.Name())
				return
			}
		}
		for _, owner := range conflicts {
			s.cancel(owner, c)
		}
		// An interrupted command's End may have scheduled c itself.
		if s.IsScheduled(c) {
			return
		}
	}

	s.initCommand(c, reqs)
}

// conflicts returns the distinct running commands owning any of reqs.
func (s *Scheduler) conflicts(reqs []Subsystem) []Command {
	var out []Command
	for _, r := range reqs {
		if owner, ok := s.requirements[r]; ok && !slices.Contains(out, owner) {
			out = append(out, owner)
		}
	}
	return out
}

func (s *Scheduler) initCommand(c Command, reqs []Subsystem) {
	s.scheduled[c] = struct{}{}
	c.base().scheduled = true
	s.running = append(s.running, c)
	for _, r := range reqs {
		s.requirements[r] = c
	}
	c.Initialize()
	// Canceled from within its own Initialize.
	if !s.IsScheduled(c) {
		return
	}
	for _, action := range s.initActions {
		action(c)
	}
	s.logger.Debug("command initialized", "command", c.Name(), "tick", s.tick)
}

// Cancel interrupts c, calling End(true) before returning. Canceling a command
// that is not running does nothing. Cancellation ignores the interruption
// behavior. An error is returned only for a composed command.
func (s *Scheduler) Cancel(c Command) error {
	if c == nil {
		s.logger.Warn("tried to cancel a nil command")
		return nil
	}
	if c.base().composed {
		return usageError(c, "composed commands may not be canceled individually")
	}
	s.cancel(c, nil)
	return nil
}

func (s *Scheduler) cancel(c, cause Command) {
	// A schedule deferred earlier in this pass must not start c after the
	// cancel.
	if s.inRunLoop {
		s.pending = slices.DeleteFunc(s.pending, func(p Command) bool { return p == c })
	}
	if _, ok := s.ending[c]; ok {
		return
	}
	if !s.IsScheduled(c) {
		return
	}

	s.ending[c] = struct{}{}
	c.End(true)
	for _, action := range s.interruptActions {
		action(c, cause)
	}
	delete(s.ending, c)
	s.retire(c)

	if cause != nil {
		s.logger.Debug("command interrupted", "command", c.Name(), "by", cause.Name(), "tick", s.tick)
	} else {
		s.logger.Debug("command canceled", "command", c.Name(), "tick", s.tick)
	}
}

func (s *Scheduler) finish(c Command) {
	s.ending[c] = struct{}{}
	c.End(false)
	for _, action := range s.finishActions {
		action(c)
	}
	delete(s.ending, c)
	s.retire(c)
	s.logger.Debug("command finished", "command", c.Name(), "tick", s.tick)
}

// retire removes c from the running set and releases its requirements.
func (s *Scheduler) retire(c Command) {
	delete(s.scheduled, c)
	c.base().scheduled = false
	if i := slices.Index(s.running, c); i >= 0 {
		s.running = slices.Delete(s.running, i, i+1)
	}
	for _, r := range c.Requirements() {
		if s.requirements[r] == c {
			delete(s.requirements, r)
		}
	}
}

// CancelAll interrupts every running command.
func (s *Scheduler) CancelAll() {
	for _, c := range slices.Clone(s.running) {
		s.cancel(c, nil)
	}
}

// Run executes one control-cycle tick:
//
//  1. Subsystem Periodic methods, in registration order.
//  2. Trigger bindings, in registration order. Schedule/Cancel take effect
//     immediately.
//  3. Every command running at the start of the pass: ended as interrupted if
//     the robot is disabled and the command may not run disabled, otherwise
//     Execute then IsFinished, ending it normally when finished.
//  4. Commands scheduled during step 3 are scheduled now; they first execute
//     on the next tick.
//  5. Default commands of unowned subsystems are scheduled.
//  6. A Snapshot is handed to every Publisher.
//
// Panics raised by command or subsystem code propagate to the caller and leave
// the scheduler in an undefined state.
func (s *Scheduler) Run() {
	s.tick++

	for _, sub := range slices.Clone(s.subsystems) {
		sub.Periodic()
	}

	for _, b := range slices.Clone(s.bindings) {
		b.poll()
	}

	s.inRunLoop = true
	for _, c := range slices.Clone(s.running) {
		// Canceled earlier in this pass.
		if !s.IsScheduled(c) {
			continue
		}
		if s.disabled && !c.RunsWhenDisabled() {
			s.cancel(c, nil)
			continue
		}
		c.Execute()
		for _, action := range s.executeActions {
			action(c)
		}
		// Canceled from within its own Execute.
		if !s.IsScheduled(c) {
			continue
		}
		if c.IsFinished() {
			s.finish(c)
		}
	}
	s.inRunLoop = false

	pending := s.pending
	s.pending = nil
	for _, c := range pending {
		if err := s.Schedule(c); err != nil {
			s.logger.Error("deferred schedule failed", "command", c.Name(), "error", err)
		}
	}

	for _, sub := range s.subsystems {
		if _, owned := s.requirements[sub]; owned {
			continue
		}
		d := s.defaults[sub]
		if d == nil {
			continue
		}
		if err := s.Schedule(d); err != nil {
			s.logger.Error("default command schedule failed", "subsystem", sub.Name(), "command", d.Name(), "error", err)
		}
	}

	if len(s.publishers) > 0 {
		snap := s.Snapshot()
		for _, p := range s.publishers {
			p.Publish(snap)
		}
	}
}

// SetDisabled mirrors the robot's enable signal. While disabled, commands that
// do not run when disabled are ended on the next Run and cannot be scheduled.
func (s *Scheduler) SetDisabled(disabled bool) {
	s.disabled = disabled
}

// Disabled reports the last value passed to SetDisabled.
func (s *Scheduler) Disabled() bool {
	return s.disabled
}

// Tick returns the number of completed or in-progress Run calls.
func (s *Scheduler) Tick() uint64 {
	return s.tick
}

// IsScheduled reports whether every given command is running. Commands inside
// compositions are never reported as scheduled.
func (s *Scheduler) IsScheduled(cmds ...Command) bool {
	for _, c := range cmds {
		if _, ok := s.scheduled[c]; !ok {
			return false
		}
	}
	return true
}

// Requiring returns the running command that owns sub, or nil.
func (s *Scheduler) Requiring(sub Subsystem) Command {
	return s.requirements[sub]
}

// Running returns the running commands in the order they were scheduled.
func (s *Scheduler) Running() []Command {
	return slices.Clone(s.running)
}

// RegisterSubsystem registers subsystems so their Periodic method is called
// and their default commands are scheduled.
func (s *Scheduler) RegisterSubsystem(subs ...Subsystem) {
	for _, sub := range subs {
		if sub == nil {
			s.logger.Warn("tried to register a nil subsystem")
			continue
		}
		if slices.Contains(s.subsystems, sub) {
			s.logger.Warn("tried to register an already-registered subsystem", "subsystem", sub.Name())
			continue
		}
		s.subsystems = append(s.subsystems, sub)
	}
}

// UnregisterSubsystem removes subsystems and their default commands. A running
// default command keeps running until it ends.
func (s *Scheduler) UnregisterSubsystem(subs ...Subsystem) {
	for _, sub := range subs {
		if i := slices.Index(s.subsystems, sub); i >= 0 {
			s.subsystems = slices.Delete(s.subsystems, i, i+1)
		}
		delete(s.defaults, sub)
	}
}

// UnregisterAllSubsystems removes every subsystem and default command. Running
// commands keep running until they end.
func (s *Scheduler) UnregisterAllSubsystems() {
	s.subsystems = nil
	clear(s.defaults)
}

// Subsystems returns the registered subsystems in registration order.
func (s *Scheduler) Subsystems() []Subsystem {
	return slices.Clone(s.subsystems)
}

// SetDefaultCommand sets the command that runs whenever no other command owns
// sub, registering sub if needed. The default command must require sub and
// must not be composed. Replacing a default does not affect a default command
// that is already running.
func (s *Scheduler) SetDefaultCommand(sub Subsystem, c Command) error {
	if sub == nil {
		return &UsageError{Reason: "default command set on a nil subsystem"}
	}
	if c == nil {
		return &UsageError{Reason: "nil default command for subsystem " + sub.Name()}
	}
	if c.base().composed {
		return usageError(c, "composed commands may not be used as default commands")
	}
	if !c.HasRequirement(sub) {
		return usageError(c, "default commands must require their subsystem %q", sub.Name())
	}
	if c.InterruptionBehavior() == CancelIncoming {
		s.logger.Warn("registering a non-interruptible default command; other commands may never acquire the subsystem",
			"subsystem", sub.Name(), "command", c.Name())
	}
	if !slices.Contains(s.subsystems, sub) {
		s.subsystems = append(s.subsystems, sub)
	}
	s.defaults[sub] = c
	return nil
}

// RemoveDefaultCommand clears the default command of sub. A running default
// command keeps running until something interrupts it.
func (s *Scheduler) RemoveDefaultCommand(sub Subsystem) {
	delete(s.defaults, sub)
}

// DefaultCommand returns the default command of sub, or nil.
func (s *Scheduler) DefaultCommand(sub Subsystem) Command {
	return s.defaults[sub]
}

// OnCommandInitialize adds an action run after any command is initialized.
func (s *Scheduler) OnCommandInitialize(action func(Command)) {
	s.initActions = append(s.initActions, action)
}

// OnCommandExecute adds an action run after any command executes.
func (s *Scheduler) OnCommandExecute(action func(Command)) {
	s.executeActions = append(s.executeActions, action)
}

// OnCommandFinish adds an action run after any command ends normally.
func (s *Scheduler) OnCommandFinish(action func(Command)) {
	s.finishActions = append(s.finishActions, action)
}

// OnCommandInterrupt adds an action run after any command is interrupted.
func (s *Scheduler) OnCommandInterrupt(action func(Command)) {
	s.interruptActions = append(s.interruptActions, func(c, _ Command) { action(c) })
}

// OnCommandInterruptWithCause adds an action run after any command is
// interrupted. cause is the command whose scheduling interrupted it, or nil
// for an explicit cancel or a disable.
func (s *Scheduler) OnCommandInterruptWithCause(action func(cmd, cause Command)) {
	s.interruptActions = append(s.interruptActions, action)
}
