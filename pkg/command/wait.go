package command

import (
	"fmt"
	"time"
)

// Clock supplies the current time to time-based commands.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f().
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Wait finishes once its duration has elapsed since Initialize.
type Wait struct {
	Base
	duration time.Duration
	clock    Clock
	start    time.Time
}

// NewWait returns a command that waits for d measured on clock. A nil clock
// uses SystemClock.
func NewWait(d time.Duration, clock Clock) *Wait {
	if clock == nil {
		clock = SystemClock
	}
	w := &Wait{duration: d, clock: clock}
	w.name = fmt.Sprintf("Wait(%s)", d)
	w.SetRunsWhenDisabled(true)
	return w
}

func (w *Wait) Initialize() {
	w.start = w.clock.Now()
}

func (w *Wait) IsFinished() bool {
	return w.Elapsed() >= w.duration
}

// Elapsed returns the time since the last Initialize.
func (w *Wait) Elapsed() time.Duration {
	return w.clock.Now().Sub(w.start)
}
