package command

import (
	"fmt"
	"testing"
	"time"
)

// testSubsystem counts Periodic calls and optionally records them.
type testSubsystem struct {
	SubsystemBase
	periodic int
	log      *[]string
}

func newTestSubsystem(name string) *testSubsystem {
	return &testSubsystem{SubsystemBase: NewSubsystemBase(name)}
}

func (s *testSubsystem) Periodic() {
	s.periodic++
	if s.log != nil {
		*s.log = append(*s.log, s.Name()+".periodic")
	}
}

// testCommand records lifecycle calls. It finishes after finishAfter executes
// of the current episode (never when finishAfter is 0) or when finished is set.
type testCommand struct {
	Base
	inits       int
	execs       int
	episodeRuns int
	ends        int
	interrupts  int
	finishAfter int
	finished    bool

	onInit    func()
	onExecute func()
	onEnd     func(interrupted bool)
	log       *[]string
}

func newTestCommand(name string, reqs ...Subsystem) *testCommand {
	c := &testCommand{}
	c.SetName(name)
	c.AddRequirements(reqs...)
	return c
}

func (c *testCommand) record(event string) {
	if c.log != nil {
		*c.log = append(*c.log, c.Name()+"."+event)
	}
}

func (c *testCommand) Initialize() {
	c.inits++
	c.episodeRuns = 0
	c.record("init")
	if c.onInit != nil {
		c.onInit()
	}
}

func (c *testCommand) Execute() {
	c.execs++
	c.episodeRuns++
	c.record("exec")
	if c.onExecute != nil {
		c.onExecute()
	}
}

func (c *testCommand) IsFinished() bool {
	if c.finished {
		return true
	}
	return c.finishAfter > 0 && c.episodeRuns >= c.finishAfter
}

func (c *testCommand) End(interrupted bool) {
	c.ends++
	if interrupted {
		c.interrupts++
	}
	c.record(fmt.Sprintf("end(%t)", interrupted))
	if c.onEnd != nil {
		c.onEnd(interrupted)
	}
}

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func mustSchedule(t *testing.T, s *Scheduler, c Command) {
	t.Helper()
	if err := s.Schedule(c); err != nil {
		t.Fatalf("Schedule(%s): %v", c.Name(), err)
	}
}

// checkInvariants verifies that every owned subsystem belongs to a running
// command that requires it, and that no two running commands share a
// requirement.
func checkInvariants(t *testing.T, s *Scheduler) {
	t.Helper()
	for sub, owner := range s.requirements {
		if !s.IsScheduled(owner) {
			t.Errorf("subsystem %s owned by %s, which is not running", sub.Name(), owner.Name())
		}
		if !owner.HasRequirement(sub) {
			t.Errorf("subsystem %s owned by %s, which does not require it", sub.Name(), owner.Name())
		}
	}
	claimed := make(map[Subsystem]Command)
	for _, c := range s.running {
		for _, r := range c.Requirements() {
			if other, ok := claimed[r]; ok {
				t.Errorf("subsystem %s required by running commands %s and %s", r.Name(), other.Name(), c.Name())
			}
			claimed[r] = c
			if s.requirements[r] != c {
				t.Errorf("running command %s requires %s but the table says %v", c.Name(), r.Name(), s.requirements[r])
			}
		}
	}
	if len(s.running) != len(s.scheduled) {
		t.Errorf("running list has %d commands, scheduled set has %d", len(s.running), len(s.scheduled))
	}
}
