package command

import "time"

// Wrapper adopts a single command and delegates its lifecycle to it, letting
// the metadata be overridden.
type Wrapper struct {
	Base
	inner   Command
	onEnd   func(interrupted bool)
	onAbort func()
}

func wrap(c Command) (*Wrapper, error) {
	w := &Wrapper{inner: c}
	w.initGroup("")
	if err := w.adopt(false, c); err != nil {
		return nil, err
	}
	w.name = c.Name()
	return w, nil
}

func (w *Wrapper) Initialize()      { w.inner.Initialize() }
func (w *Wrapper) Execute()         { w.inner.Execute() }
func (w *Wrapper) IsFinished() bool { return w.inner.IsFinished() }

func (w *Wrapper) End(interrupted bool) {
	w.inner.End(interrupted)
	if interrupted && w.onAbort != nil {
		w.onAbort()
	}
	if w.onEnd != nil {
		w.onEnd(interrupted)
	}
}

// WithName wraps c under a different name.
func WithName(c Command, name string) (*Wrapper, error) {
	w, err := wrap(c)
	if err != nil {
		return nil, err
	}
	w.name = name
	return w, nil
}

// IgnoringDisable wraps c with an explicit run-when-disabled flag.
func IgnoringDisable(c Command, runsWhenDisabled bool) (*Wrapper, error) {
	w, err := wrap(c)
	if err != nil {
		return nil, err
	}
	w.SetRunsWhenDisabled(runsWhenDisabled)
	return w, nil
}

// WithInterruptBehavior wraps c with a different interruption behavior.
func WithInterruptBehavior(c Command, ib InterruptionBehavior) (*Wrapper, error) {
	w, err := wrap(c)
	if err != nil {
		return nil, err
	}
	w.behavior = ib
	return w, nil
}

// FinallyDo wraps c so that fn runs after c ends, however it ends.
func FinallyDo(c Command, fn func(interrupted bool)) (*Wrapper, error) {
	w, err := wrap(c)
	if err != nil {
		return nil, err
	}
	w.onEnd = fn
	return w, nil
}

// HandleInterrupt wraps c so that fn runs after c is interrupted.
func HandleInterrupt(c Command, fn func()) (*Wrapper, error) {
	w, err := wrap(c)
	if err != nil {
		return nil, err
	}
	w.onAbort = fn
	return w, nil
}

// Until races c against condition, interrupting c once condition is true.
func Until(c Command, condition func() bool) (*Race, error) {
	return NewRace(c, NewWaitUntil(condition))
}

// OnlyWhile races c against condition, interrupting c once condition is false.
func OnlyWhile(c Command, condition func() bool) (*Race, error) {
	return Until(c, func() bool { return !condition() })
}

// WithTimeout interrupts c once d has elapsed on clock.
func WithTimeout(c Command, d time.Duration, clock Clock) (*Race, error) {
	return NewRace(c, NewWait(d, clock))
}

// AndThen runs c followed by next.
func AndThen(c Command, next ...Command) (*Sequence, error) {
	return NewSequence(append([]Command{c}, next...)...)
}

// BeforeStarting runs before and then c.
func BeforeStarting(c, before Command) (*Sequence, error) {
	return NewSequence(before, c)
}

// AlongWith runs c and others in parallel until all finish.
func AlongWith(c Command, others ...Command) (*Parallel, error) {
	return NewParallel(append([]Command{c}, others...)...)
}

// RaceWith runs c and others in parallel until any finishes.
func RaceWith(c Command, others ...Command) (*Race, error) {
	return NewRace(append([]Command{c}, others...)...)
}

// DeadlineWith runs others alongside c until c finishes.
func DeadlineWith(c Command, others ...Command) (*Deadline, error) {
	return NewDeadline(c, others...)
}

// DeadlineFor runs c alongside deadline until deadline finishes.
func DeadlineFor(c, deadline Command) (*Deadline, error) {
	return NewDeadline(deadline, c)
}

// AsProxy schedules c on sched through a proxy, so a composition holding the
// proxy does not claim c's requirements.
func AsProxy(sched *Scheduler, c Command) (*Proxy, error) {
	return NewProxy(sched, c)
}

// Repeatedly restarts c every time it finishes.
func Repeatedly(c Command) (*Repeat, error) {
	return NewRepeat(c)
}

// OnlyIf runs c only if condition is true when the composition starts.
func OnlyIf(c Command, condition func() bool) (*Conditional, error) {
	return NewConditional(c, NewInstant(nil), condition)
}

// Unless runs c only if condition is false when the composition starts.
func Unless(c Command, condition func() bool) (*Conditional, error) {
	return NewConditional(NewInstant(nil), c, condition)
}
