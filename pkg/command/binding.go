package command

import (
	"fmt"
	"strings"
)

// TriggerAction selects what a trigger binding does with its target command.
type TriggerAction int

const (
	// WhenActive schedules the target on a rising edge.
	WhenActive TriggerAction = iota
	// WhenInactive schedules the target on a falling edge.
	WhenInactive
	// WhileActiveContinuous schedules the target every tick the condition is
	// true and cancels it on a falling edge.
	WhileActiveContinuous
	// WhileActiveOnce schedules the target on a rising edge and cancels it on
	// a falling edge.
	WhileActiveOnce
	// ToggleWhenActive cancels the target on a rising edge if it is running,
	// and schedules it otherwise.
	ToggleWhenActive
	// CancelWhenActive cancels the target on a rising edge.
	CancelWhenActive
)

var triggerActionNames = map[TriggerAction]string{
	WhenActive:            "whenActive",
	WhenInactive:          "whenInactive",
	WhileActiveContinuous: "whileActiveContinuous",
	WhileActiveOnce:       "whileActiveOnce",
	ToggleWhenActive:      "toggleWhenActive",
	CancelWhenActive:      "cancelWhenActive",
}

// String returns the camel-case name of the action.
func (a TriggerAction) String() string {
	if name, ok := triggerActionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("TriggerAction(%d)", int(a))
}

// ParseTriggerAction converts a name such as "whileActiveOnce" to a
// TriggerAction. Matching is case-insensitive.
func ParseTriggerAction(name string) (TriggerAction, error) {
	for a, n := range triggerActionNames {
		if strings.EqualFold(n, name) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown trigger action %q", name)
}

// binding is an edge detector over a condition bound to one action.
type binding struct {
	sched    *Scheduler
	cond     func() bool
	action   TriggerAction
	target   Command
	previous bool
}

// BindTrigger installs an edge-triggered binding that is polled at the start
// of every Run, in registration order. The condition is sampled once now to
// seed edge detection, so a condition that is already true does not produce a
// rising edge on the first poll.
func (s *Scheduler) BindTrigger(cond func() bool, action TriggerAction, target Command) error {
	if cond == nil {
		return &UsageError{Reason: "trigger bound with a nil condition"}
	}
	if target == nil {
		return &UsageError{Reason: "trigger bound to a nil command"}
	}
	if _, ok := triggerActionNames[action]; !ok {
		return fmt.Errorf("bind trigger: unknown action %d", int(action))
	}
	if target.base().composed {
		return usageError(target, "composed commands may not be bound to triggers")
	}
	s.bindings = append(s.bindings, &binding{
		sched:    s,
		cond:     cond,
		action:   action,
		target:   target,
		previous: cond(),
	})
	return nil
}

// ClearTriggers removes every trigger binding.
func (s *Scheduler) ClearTriggers() {
	s.bindings = nil
}

func (b *binding) poll() {
	current := b.cond()
	previous := b.previous
	b.previous = current

	rising := !previous && current
	falling := previous && !current

	switch b.action {
	case WhenActive:
		if rising {
			b.schedule()
		}
	case WhenInactive:
		if falling {
			b.schedule()
		}
	case WhileActiveContinuous:
		if current {
			b.schedule()
		} else if falling {
			b.cancel()
		}
	case WhileActiveOnce:
		if rising {
			b.schedule()
		} else if falling {
			b.cancel()
		}
	case ToggleWhenActive:
		if rising {
			if b.sched.IsScheduled(b.target) {
				b.cancel()
			} else {
				b.schedule()
			}
		}
	case CancelWhenActive:
		if rising {
			b.cancel()
		}
	}
}

func (b *binding) schedule() {
	if err := b.sched.Schedule(b.target); err != nil {
		b.sched.logger.Error("trigger schedule failed", "action", b.action, "command", b.target.Name(), "error", err)
	}
}

func (b *binding) cancel() {
	if err := b.sched.Cancel(b.target); err != nil {
		b.sched.logger.Error("trigger cancel failed", "action", b.action, "command", b.target.Name(), "error", err)
	}
}
