package command

import (
	"fmt"
	"io"
)

// Functional builds a command from callbacks. Nil callbacks are skipped; a nil
// isFinished means the command never finishes on its own.
type Functional struct {
	Base
	onInit     func()
	onExecute  func()
	onEnd      func(interrupted bool)
	isFinished func() bool
}

// NewFunctional returns a command that calls the given functions.
func NewFunctional(onInit, onExecute func(), onEnd func(interrupted bool), isFinished func() bool, reqs ...Subsystem) *Functional {
	f := &Functional{onInit: onInit, onExecute: onExecute, onEnd: onEnd, isFinished: isFinished}
	f.name = "FunctionalCommand"
	f.AddRequirements(reqs...)
	return f
}

func (f *Functional) Initialize() {
	if f.onInit != nil {
		f.onInit()
	}
}

func (f *Functional) Execute() {
	if f.onExecute != nil {
		f.onExecute()
	}
}

func (f *Functional) IsFinished() bool {
	return f.isFinished != nil && f.isFinished()
}

func (f *Functional) End(interrupted bool) {
	if f.onEnd != nil {
		f.onEnd(interrupted)
	}
}

func always() bool { return true }

// NewInstant returns a command that calls fn once at Initialize and finishes
// on its first tick.
func NewInstant(fn func(), reqs ...Subsystem) *Functional {
	f := NewFunctional(fn, nil, nil, always, reqs...)
	f.name = "InstantCommand"
	return f
}

// NewRun returns a command that calls fn every tick and never finishes.
func NewRun(fn func(), reqs ...Subsystem) *Functional {
	f := NewFunctional(nil, fn, nil, nil, reqs...)
	f.name = "RunCommand"
	return f
}

// NewStartEnd returns a command that calls start at Initialize and stop at End,
// and never finishes on its own.
func NewStartEnd(start, stop func(), reqs ...Subsystem) *Functional {
	var onEnd func(bool)
	if stop != nil {
		onEnd = func(bool) { stop() }
	}
	f := NewFunctional(start, nil, onEnd, nil, reqs...)
	f.name = "StartEndCommand"
	return f
}

// NewWaitUntil returns a command that finishes once condition is true.
func NewWaitUntil(condition func() bool) *Functional {
	f := NewFunctional(nil, nil, nil, condition)
	f.name = "WaitUntilCommand"
	return f
}

// NewPrint returns an instant command that writes msg and a newline to w.
func NewPrint(w io.Writer, msg string) *Functional {
	f := NewInstant(func() { fmt.Fprintln(w, msg) })
	f.name = "PrintCommand"
	f.SetRunsWhenDisabled(true)
	return f
}

// NewScheduleCommand returns an instant command that schedules cmds on sched
// without adopting them. The scheduled commands run independently of it.
func NewScheduleCommand(sched *Scheduler, cmds ...Command) *Functional {
	f := NewInstant(func() {
		for _, c := range cmds {
			if err := sched.Schedule(c); err != nil {
				sched.logger.Error("schedule command failed", "command", c.Name(), "error", err)
			}
		}
	})
	f.name = "ScheduleCommand"
	f.SetRunsWhenDisabled(true)
	return f
}
