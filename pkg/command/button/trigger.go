// Package button provides Trigger, a composable boolean condition that binds
// commands to its edges through a command.Scheduler.
package button

import (
	"time"

	"github.com/me/botsched/pkg/command"
)

// Trigger wraps a boolean condition polled once per scheduler tick.
type Trigger struct {
	sched *command.Scheduler
	cond  func() bool
}

// New returns a trigger over cond that binds commands on sched.
func New(sched *command.Scheduler, cond func() bool) *Trigger {
	return &Trigger{sched: sched, cond: cond}
}

// Get samples the condition.
func (t *Trigger) Get() bool {
	return t.cond()
}

// WhenActive schedules c when the condition changes to true.
func (t *Trigger) WhenActive(c command.Command) error {
	return t.sched.BindTrigger(t.cond, command.WhenActive, c)
}

// WhenInactive schedules c when the condition changes to false.
func (t *Trigger) WhenInactive(c command.Command) error {
	return t.sched.BindTrigger(t.cond, command.WhenInactive, c)
}

// WhileActiveContinuous schedules c every tick the condition is true and
// cancels it when the condition changes to false.
func (t *Trigger) WhileActiveContinuous(c command.Command) error {
	return t.sched.BindTrigger(t.cond, command.WhileActiveContinuous, c)
}

// WhileActiveOnce schedules c when the condition changes to true and cancels
// it when the condition changes to false.
func (t *Trigger) WhileActiveOnce(c command.Command) error {
	return t.sched.BindTrigger(t.cond, command.WhileActiveOnce, c)
}

// ToggleWhenActive starts or stops c each time the condition changes to true.
func (t *Trigger) ToggleWhenActive(c command.Command) error {
	return t.sched.BindTrigger(t.cond, command.ToggleWhenActive, c)
}

// CancelWhenActive cancels c when the condition changes to true.
func (t *Trigger) CancelWhenActive(c command.Command) error {
	return t.sched.BindTrigger(t.cond, command.CancelWhenActive, c)
}

// And returns a trigger that is active while both t and other are active.
func (t *Trigger) And(other *Trigger) *Trigger {
	return New(t.sched, func() bool { return t.cond() && other.cond() })
}

// Or returns a trigger that is active while t or other is active.
func (t *Trigger) Or(other *Trigger) *Trigger {
	return New(t.sched, func() bool { return t.cond() || other.cond() })
}

// Negate returns a trigger that is active while t is not.
func (t *Trigger) Negate() *Trigger {
	return New(t.sched, func() bool { return !t.cond() })
}

// DebounceType selects which transitions a debounced trigger delays.
type DebounceType int

const (
	// DebounceRising delays false→true transitions.
	DebounceRising DebounceType = iota
	// DebounceFalling delays true→false transitions.
	DebounceFalling
	// DebounceBoth delays both transitions.
	DebounceBoth
)

// Debounce returns a trigger whose value changes only after the underlying
// condition has held the new value for d, measured on clock. Only the
// transitions selected by typ are delayed. A nil clock uses the system clock.
func (t *Trigger) Debounce(d time.Duration, typ DebounceType, clock command.Clock) *Trigger {
	if clock == nil {
		clock = command.SystemClock
	}
	db := &debouncer{
		period:     d,
		typ:        typ,
		clock:      clock,
		baseline:   typ == DebounceFalling,
		lastChange: clock.Now(),
	}
	return New(t.sched, func() bool { return db.calculate(t.cond()) })
}

type debouncer struct {
	period     time.Duration
	typ        DebounceType
	clock      command.Clock
	baseline   bool
	lastChange time.Time
}

func (d *debouncer) calculate(input bool) bool {
	now := d.clock.Now()
	if input == d.baseline {
		d.lastChange = now
	}
	if now.Sub(d.lastChange) >= d.period {
		if d.typ == DebounceBoth {
			d.baseline = input
			d.lastChange = now
		}
		return input
	}
	return d.baseline
}
