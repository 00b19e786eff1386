package command

import (
	"errors"
	"slices"
	"testing"
)

func TestSchedule_InitializesOnce(t *testing.T) {
	s := NewScheduler()
	c := newTestCommand("c")

	mustSchedule(t, s, c)
	mustSchedule(t, s, c)

	if c.inits != 1 {
		t.Errorf("inits = %d, want 1", c.inits)
	}
	if !s.IsScheduled(c) {
		t.Error("command should be scheduled")
	}
	if got := len(s.Running()); got != 1 {
		t.Errorf("running = %d, want 1", got)
	}
}

func TestSchedule_NilCommandIsIgnored(t *testing.T) {
	s := NewScheduler()
	if err := s.Schedule(nil); err != nil {
		t.Errorf("Schedule(nil) = %v, want nil", err)
	}
	if err := s.Cancel(nil); err != nil {
		t.Errorf("Cancel(nil) = %v, want nil", err)
	}
}

func TestSchedule_ComposedCommandFails(t *testing.T) {
	s := NewScheduler()
	child := newTestCommand("child")
	if _, err := NewSequence(child); err != nil {
		t.Fatalf("NewSequence: %v", err)
	}

	err := s.Schedule(child)
	if !errors.Is(err, ErrIllegalCompositionUse) {
		t.Fatalf("Schedule(composed) = %v, want ErrIllegalCompositionUse", err)
	}
	var ue *UsageError
	if !errors.As(err, &ue) || ue.Command != "child" {
		t.Errorf("error = %#v, want UsageError for child", err)
	}
	if child.inits != 0 || s.IsScheduled(child) {
		t.Error("composed command must not be initialized or scheduled")
	}

	if err := s.Cancel(child); !errors.Is(err, ErrIllegalCompositionUse) {
		t.Errorf("Cancel(composed) = %v, want ErrIllegalCompositionUse", err)
	}
}

func TestRun_ExecutesBeforeCheckingFinished(t *testing.T) {
	var log []string
	s := NewScheduler()
	c := newTestCommand("once")
	c.finishAfter = 1
	c.log = &log

	mustSchedule(t, s, c)
	s.Run()

	want := []string{"once.init", "once.exec", "once.end(false)"}
	if !slices.Equal(log, want) {
		t.Errorf("log = %v, want %v", log, want)
	}
	if s.IsScheduled(c) {
		t.Error("finished command should not be scheduled")
	}
}

func TestRun_ReschedulingAfterEnd(t *testing.T) {
	s := NewScheduler()
	c := newTestCommand("c")
	c.finishAfter = 1

	mustSchedule(t, s, c)
	s.Run()
	mustSchedule(t, s, c)
	s.Run()

	if c.inits != 2 || c.execs != 2 || c.ends != 2 {
		t.Errorf("inits/execs/ends = %d/%d/%d, want 2/2/2", c.inits, c.execs, c.ends)
	}
}

func TestSchedule_InterruptsCancelSelfOwner(t *testing.T) {
	s := NewScheduler()
	r := newTestSubsystem("R")
	a := newTestCommand("A", r)
	b := newTestCommand("B", r)

	var causes []string
	s.OnCommandInterruptWithCause(func(cmd, cause Command) {
		causes = append(causes, cmd.Name()+"<-"+cause.Name())
	})

	mustSchedule(t, s, a)
	mustSchedule(t, s, b)

	if a.interrupts != 1 {
		t.Errorf("A interrupts = %d, want 1", a.interrupts)
	}
	if s.IsScheduled(a) || !s.IsScheduled(b) {
		t.Errorf("scheduled A=%t B=%t, want false/true", s.IsScheduled(a), s.IsScheduled(b))
	}
	if s.Requiring(r) != b {
		t.Errorf("Requiring(R) = %v, want B", s.Requiring(r))
	}
	if !slices.Equal(causes, []string{"A<-B"}) {
		t.Errorf("causes = %v", causes)
	}
	checkInvariants(t, s)
}

func TestSchedule_CancelIncomingOwnerRefuses(t *testing.T) {
	s := NewScheduler()
	r := newTestSubsystem("R")
	a := newTestCommand("A", r)
	a.SetInterruptionBehavior(CancelIncoming)
	b := newTestCommand("B", r)

	mustSchedule(t, s, a)
	mustSchedule(t, s, b)

	if a.ends != 0 {
		t.Errorf("A ends = %d, want 0", a.ends)
	}
	if !s.IsScheduled(a) || s.IsScheduled(b) {
		t.Errorf("scheduled A=%t B=%t, want true/false", s.IsScheduled(a), s.IsScheduled(b))
	}
	if b.inits != 0 {
		t.Errorf("B inits = %d, want 0", b.inits)
	}
	checkInvariants(t, s)
}

func TestSchedule_AnyRefusingOwnerAbortsWholeCall(t *testing.T) {
	s := NewScheduler()
	r1 := newTestSubsystem("R1")
	r2 := newTestSubsystem("R2")
	tolerant := newTestCommand("tolerant", r1)
	critical := newTestCommand("critical", r2)
	critical.SetInterruptionBehavior(CancelIncoming)
	incoming := newTestCommand("incoming", r1, r2)

	mustSchedule(t, s, tolerant)
	mustSchedule(t, s, critical)
	mustSchedule(t, s, incoming)

	if tolerant.ends != 0 {
		t.Error("tolerant owner must not be canceled when another owner refuses")
	}
	if s.IsScheduled(incoming) {
		t.Error("incoming must not be scheduled")
	}
	checkInvariants(t, s)
}

func TestSchedule_IncomingPolicyIsIrrelevant(t *testing.T) {
	s := NewScheduler()
	r := newTestSubsystem("R")
	a := newTestCommand("A", r)
	b := newTestCommand("B", r)
	b.SetInterruptionBehavior(CancelIncoming)

	mustSchedule(t, s, a)
	mustSchedule(t, s, b)

	if !s.IsScheduled(b) || s.IsScheduled(a) {
		t.Error("a CancelIncoming newcomer should still preempt a CancelSelf owner")
	}
}

func TestSchedule_SharedConflictInterruptedOnce(t *testing.T) {
	s := NewScheduler()
	r1 := newTestSubsystem("R1")
	r2 := newTestSubsystem("R2")
	a := newTestCommand("A", r1, r2)
	b := newTestCommand("B", r1, r2)

	mustSchedule(t, s, a)
	mustSchedule(t, s, b)

	if a.ends != 1 {
		t.Errorf("A ends = %d, want 1", a.ends)
	}
	checkInvariants(t, s)
}

func TestRun_ScheduleDuringExecuteIsDeferred(t *testing.T) {
	s := NewScheduler()
	b := newTestCommand("B")
	a := newTestCommand("A")
	a.onExecute = func() {
		if err := s.Schedule(b); err != nil {
			t.Errorf("Schedule from Execute: %v", err)
		}
		if s.IsScheduled(b) {
			t.Error("B must not be scheduled while the execute pass is running")
		}
	}

	mustSchedule(t, s, a)
	s.Run()

	if b.inits != 1 {
		t.Errorf("B inits = %d, want 1 (initialized at flush)", b.inits)
	}
	if b.execs != 0 {
		t.Errorf("B execs = %d, want 0 on the tick it was scheduled", b.execs)
	}

	s.Run()
	if b.execs != 1 {
		t.Errorf("B execs = %d, want 1 on the next tick", b.execs)
	}
}

func TestRun_DeferredScheduleDeduplicated(t *testing.T) {
	s := NewScheduler()
	b := newTestCommand("B")
	a := newTestCommand("A")
	a.onExecute = func() {
		s.Schedule(b)
		s.Schedule(b)
	}
	mustSchedule(t, s, a)
	s.Run()
	if b.inits != 1 {
		t.Errorf("B inits = %d, want 1", b.inits)
	}
}

func TestRun_ScheduleFromEndIsDeferred(t *testing.T) {
	s := NewScheduler()
	next := newTestCommand("next")
	a := newTestCommand("A")
	a.finishAfter = 1
	a.onEnd = func(bool) { s.Schedule(next) }

	mustSchedule(t, s, a)
	s.Run()

	if !s.IsScheduled(next) || next.execs != 0 {
		t.Errorf("next scheduled=%t execs=%d, want true/0", s.IsScheduled(next), next.execs)
	}
}

func TestRun_CancelDuringExecuteIsImmediate(t *testing.T) {
	s := NewScheduler()
	victim := newTestCommand("victim")
	killer := newTestCommand("killer")
	killer.onExecute = func() {
		if err := s.Cancel(victim); err != nil {
			t.Errorf("Cancel: %v", err)
		}
		if victim.interrupts != 1 {
			t.Error("End(true) must run before Cancel returns")
		}
	}

	mustSchedule(t, s, killer)
	mustSchedule(t, s, victim)
	s.Run()

	if victim.execs != 0 {
		t.Errorf("victim execs = %d, want 0 (canceled before its turn)", victim.execs)
	}
	if s.IsScheduled(victim) {
		t.Error("victim should not be scheduled")
	}
	checkInvariants(t, s)
}

func TestRun_CancelDropsDeferredSchedule(t *testing.T) {
	s := NewScheduler()
	target := newTestCommand("target")
	driver := newTestCommand("driver")
	driver.finishAfter = 1
	driver.onExecute = func() {
		s.Schedule(target)
		s.Cancel(target)
	}

	mustSchedule(t, s, driver)
	s.Run()

	if s.IsScheduled(target) || target.inits != 0 {
		t.Errorf("target scheduled=%t inits=%d, want false/0", s.IsScheduled(target), target.inits)
	}
	checkInvariants(t, s)
}

func TestRun_RescheduleAfterCancelInSamePass(t *testing.T) {
	s := NewScheduler()
	target := newTestCommand("target")
	driver := newTestCommand("driver")
	driver.finishAfter = 1
	driver.onExecute = func() {
		s.Schedule(target)
		s.Cancel(target)
		s.Schedule(target)
	}

	mustSchedule(t, s, driver)
	s.Run()

	if !s.IsScheduled(target) || target.inits != 1 {
		t.Errorf("target scheduled=%t inits=%d, want true/1", s.IsScheduled(target), target.inits)
	}
}

func TestSchedule_CancelFromOwnInitializeSkipsInitHooks(t *testing.T) {
	s := NewScheduler()
	var events []string
	s.OnCommandInitialize(func(c Command) { events = append(events, "init:"+c.Name()) })
	s.OnCommandInterrupt(func(c Command) { events = append(events, "interrupt:"+c.Name()) })

	c := newTestCommand("c")
	c.onInit = func() { s.Cancel(c) }
	mustSchedule(t, s, c)

	if s.IsScheduled(c) {
		t.Error("command canceled during Initialize should not be scheduled")
	}
	if want := []string{"interrupt:c"}; !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
	checkInvariants(t, s)
}

func TestUnregisterAllSubsystems(t *testing.T) {
	s := NewScheduler()
	drive := newTestSubsystem("drive")
	arm := newTestSubsystem("arm")
	idle := newTestCommand("idle", drive)
	if err := s.SetDefaultCommand(drive, idle); err != nil {
		t.Fatal(err)
	}
	s.RegisterSubsystem(arm)

	s.UnregisterAllSubsystems()
	s.Run()

	if len(s.Subsystems()) != 0 {
		t.Errorf("subsystems = %d, want 0", len(s.Subsystems()))
	}
	if s.DefaultCommand(drive) != nil || s.IsScheduled(idle) {
		t.Error("default command should be removed with its subsystem")
	}
	if drive.periodic != 0 || arm.periodic != 0 {
		t.Error("unregistered subsystems should not be polled")
	}
}

func TestRun_SelfCancelSkipsIsFinished(t *testing.T) {
	s := NewScheduler()
	c := newTestCommand("c")
	c.finishAfter = 1
	c.onExecute = func() { s.Cancel(c) }

	mustSchedule(t, s, c)
	s.Run()

	if c.ends != 1 || c.interrupts != 1 {
		t.Errorf("ends/interrupts = %d/%d, want 1/1", c.ends, c.interrupts)
	}
}

func TestCancel_FromOwnEndIsIgnored(t *testing.T) {
	s := NewScheduler()
	c := newTestCommand("c")
	c.onEnd = func(bool) { s.Cancel(c) }

	mustSchedule(t, s, c)
	if err := s.Cancel(c); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if c.ends != 1 {
		t.Errorf("ends = %d, want 1", c.ends)
	}
}

func TestCancel_NotRunningIsNoop(t *testing.T) {
	s := NewScheduler()
	c := newTestCommand("c")
	if err := s.Cancel(c); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if c.ends != 0 {
		t.Errorf("ends = %d, want 0", c.ends)
	}
}

func TestCancelAll(t *testing.T) {
	s := NewScheduler()
	a := newTestCommand("A", newTestSubsystem("R1"))
	b := newTestCommand("B", newTestSubsystem("R2"))
	mustSchedule(t, s, a)
	mustSchedule(t, s, b)

	s.CancelAll()

	if len(s.Running()) != 0 {
		t.Errorf("running = %d, want 0", len(s.Running()))
	}
	if a.interrupts != 1 || b.interrupts != 1 {
		t.Error("every command should be interrupted")
	}
	checkInvariants(t, s)
}

func TestRun_TickOrder(t *testing.T) {
	var log []string
	s := NewScheduler()
	sub := newTestSubsystem("drive")
	sub.log = &log
	s.RegisterSubsystem(sub)

	c := newTestCommand("c")
	c.log = &log
	if err := s.BindTrigger(func() bool {
		log = append(log, "poll")
		return false
	}, WhenActive, c); err != nil {
		t.Fatalf("BindTrigger: %v", err)
	}
	log = nil
	mustSchedule(t, s, c)
	s.Run()

	want := []string{"c.init", "drive.periodic", "poll", "c.exec"}
	if !slices.Equal(log, want) {
		t.Errorf("log = %v, want %v", log, want)
	}
}

func TestRun_TriggerScheduleRunsSameTick(t *testing.T) {
	s := NewScheduler()
	pressed := false
	c := newTestCommand("c")
	if err := s.BindTrigger(func() bool { return pressed }, WhenActive, c); err != nil {
		t.Fatalf("BindTrigger: %v", err)
	}

	pressed = true
	s.Run()

	if c.inits != 1 || c.execs != 1 {
		t.Errorf("inits/execs = %d/%d, want 1/1", c.inits, c.execs)
	}
}

func TestRun_DisabledEndsCommandsThatCannotRunDisabled(t *testing.T) {
	s := NewScheduler()
	blocked := newTestCommand("blocked")
	blocked.SetRunsWhenDisabled(false)
	allowed := newTestCommand("allowed")

	mustSchedule(t, s, blocked)
	mustSchedule(t, s, allowed)
	s.SetDisabled(true)
	s.Run()

	if blocked.interrupts != 1 || blocked.execs != 0 {
		t.Errorf("blocked interrupts/execs = %d/%d, want 1/0", blocked.interrupts, blocked.execs)
	}
	if allowed.execs != 1 || !s.IsScheduled(allowed) {
		t.Error("allowed command should keep running while disabled")
	}

	mustSchedule(t, s, blocked)
	if s.IsScheduled(blocked) {
		t.Error("blocked command must not be scheduled while disabled")
	}

	s.SetDisabled(false)
	mustSchedule(t, s, blocked)
	if !s.IsScheduled(blocked) {
		t.Error("blocked command should schedule once enabled")
	}
}

func TestRunsWhenDisabled_SubsystemPolicy(t *testing.T) {
	sub := newTestSubsystem("arm")
	c := newTestCommand("c", sub)
	if !c.RunsWhenDisabled() {
		t.Error("default should be true")
	}
	sub.SetCommandsRunWhenDisabled(false)
	if c.RunsWhenDisabled() {
		t.Error("subsystem policy should block the command")
	}
	c.SetRunsWhenDisabled(true)
	if !c.RunsWhenDisabled() {
		t.Error("explicit flag should win over the subsystem policy")
	}
}

// TestDefaultCommand_EndToEnd walks a subsystem through default, preemption
// and reassignment.
func TestDefaultCommand_EndToEnd(t *testing.T) {
	s := NewScheduler()
	drive := newTestSubsystem("Drive")
	s.RegisterSubsystem(drive)
	d0 := newTestCommand("D0", drive)
	if err := s.SetDefaultCommand(drive, d0); err != nil {
		t.Fatalf("SetDefaultCommand: %v", err)
	}

	// Tick 1: D0 is assigned.
	s.Run()
	if !s.IsScheduled(d0) {
		t.Fatal("D0 should run after the first tick")
	}

	// D1 preempts D0.
	d1 := newTestCommand("D1", drive)
	d1.finishAfter = 2
	mustSchedule(t, s, d1)
	if d0.interrupts != 1 || !s.IsScheduled(d1) {
		t.Fatalf("D0 interrupts=%d D1 scheduled=%t", d0.interrupts, s.IsScheduled(d1))
	}

	// Tick 2: D1 executes once.
	s.Run()
	if !s.IsScheduled(d1) || s.IsScheduled(d0) {
		t.Fatal("D1 should still own Drive")
	}

	// Tick 3: D1 finishes and D0 is scheduled again in the same tick.
	s.Run()
	if s.IsScheduled(d1) {
		t.Error("D1 should have finished")
	}
	if !s.IsScheduled(d0) || d0.inits != 2 {
		t.Errorf("D0 scheduled=%t inits=%d, want true/2", s.IsScheduled(d0), d0.inits)
	}
	execsBefore := d0.execs

	// Tick 4: D0 executes as the default again.
	s.Run()
	if d0.execs != execsBefore+1 {
		t.Errorf("D0 execs = %d, want %d", d0.execs, execsBefore+1)
	}
	checkInvariants(t, s)
}

func TestSetDefaultCommand_Errors(t *testing.T) {
	s := NewScheduler()
	drive := newTestSubsystem("Drive")

	tests := []struct {
		name string
		cmd  func() Command
	}{
		{"missing requirement", func() Command { return newTestCommand("x") }},
		{"composed", func() Command {
			c := newTestCommand("x", drive)
			NewSequence(c)
			return c
		}},
		{"nil command", func() Command { return nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SetDefaultCommand(drive, tt.cmd())
			if !errors.Is(err, ErrIllegalCompositionUse) {
				t.Errorf("err = %v, want ErrIllegalCompositionUse", err)
			}
		})
	}
	if s.DefaultCommand(drive) != nil {
		t.Error("no default should have been stored")
	}
}

func TestDefaultCommand_RemoveAndUnregister(t *testing.T) {
	s := NewScheduler()
	drive := newTestSubsystem("Drive")
	d0 := newTestCommand("D0", drive)
	if err := s.SetDefaultCommand(drive, d0); err != nil {
		t.Fatalf("SetDefaultCommand: %v", err)
	}
	if len(s.Subsystems()) != 1 {
		t.Fatal("SetDefaultCommand should register the subsystem")
	}

	s.RemoveDefaultCommand(drive)
	s.Run()
	if s.IsScheduled(d0) {
		t.Error("removed default should not be scheduled")
	}

	s.SetDefaultCommand(drive, d0)
	s.UnregisterSubsystem(drive)
	s.Run()
	if s.IsScheduled(d0) || drive.periodic != 1 {
		t.Errorf("unregistered subsystem: scheduled=%t periodic=%d", s.IsScheduled(d0), drive.periodic)
	}
}

func TestDefaultCommand_ReplacementNotRetroactive(t *testing.T) {
	s := NewScheduler()
	drive := newTestSubsystem("Drive")
	d0 := newTestCommand("D0", drive)
	d1 := newTestCommand("D1", drive)
	s.SetDefaultCommand(drive, d0)
	s.Run()

	s.SetDefaultCommand(drive, d1)
	s.Run()

	if !s.IsScheduled(d0) || s.IsScheduled(d1) {
		t.Error("running default should keep running after replacement")
	}
}

func TestHooks(t *testing.T) {
	s := NewScheduler()
	var events []string
	s.OnCommandInitialize(func(c Command) { events = append(events, "init:"+c.Name()) })
	s.OnCommandExecute(func(c Command) { events = append(events, "exec:"+c.Name()) })
	s.OnCommandFinish(func(c Command) { events = append(events, "finish:"+c.Name()) })
	s.OnCommandInterrupt(func(c Command) { events = append(events, "interrupt:"+c.Name()) })

	a := newTestCommand("a")
	a.finishAfter = 1
	b := newTestCommand("b")
	mustSchedule(t, s, a)
	mustSchedule(t, s, b)
	s.Run()
	s.Cancel(b)

	want := []string{"init:a", "init:b", "exec:a", "finish:a", "exec:b", "interrupt:b"}
	if !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestSnapshot(t *testing.T) {
	var got []Snapshot
	s := NewScheduler(WithPublisher(PublisherFunc(func(snap Snapshot) {
		got = append(got, snap)
	})))
	drive := newTestSubsystem("drive")
	arm := newTestSubsystem("arm")
	mustSchedule(t, s, newTestCommand("move", drive, arm))
	mustSchedule(t, s, newTestCommand("idle"))

	s.Run()

	if len(got) != 1 {
		t.Fatalf("published %d snapshots, want 1", len(got))
	}
	snap := got[0]
	if snap.Tick != 1 {
		t.Errorf("Tick = %d, want 1", snap.Tick)
	}
	if !slices.Equal(snap.Running, []string{"move", "idle"}) {
		t.Errorf("Running = %v", snap.Running)
	}
	wantOwners := []Ownership{{"drive", "move"}, {"arm", "move"}}
	if !slices.Equal(snap.Owners, wantOwners) {
		t.Errorf("Owners = %v, want %v", snap.Owners, wantOwners)
	}
}

func TestRegisterSubsystem_Duplicates(t *testing.T) {
	s := NewScheduler()
	sub := newTestSubsystem("x")
	s.RegisterSubsystem(sub, sub, nil)
	if len(s.Subsystems()) != 1 {
		t.Errorf("subsystems = %d, want 1", len(s.Subsystems()))
	}
	s.Run()
	if sub.periodic != 1 {
		t.Errorf("periodic = %d, want 1", sub.periodic)
	}
}

// TestInvariants_MixedScenario exercises scheduling, preemption, triggers and
// defaults together and checks ownership after every step.
func TestInvariants_MixedScenario(t *testing.T) {
	s := NewScheduler()
	drive := newTestSubsystem("drive")
	arm := newTestSubsystem("arm")
	intake := newTestSubsystem("intake")
	s.RegisterSubsystem(drive, arm, intake)

	s.SetDefaultCommand(drive, newTestCommand("driveIdle", drive))
	s.SetDefaultCommand(arm, newTestCommand("armHold", arm))

	button := false
	score := newTestCommand("score", arm, intake)
	score.finishAfter = 3
	if err := s.BindTrigger(func() bool { return button }, WhileActiveOnce, score); err != nil {
		t.Fatal(err)
	}

	auto := newTestCommand("auto", drive, arm)
	auto.SetInterruptionBehavior(CancelIncoming)
	auto.finishAfter = 2

	steps := []func(){
		func() { s.Run() },
		func() { button = true; s.Run() },
		func() { mustSchedule(t, s, auto) },
		func() { s.Run() },
		func() { button = false; s.Run() },
		func() { mustSchedule(t, s, auto) },
		func() { s.Run() },
		func() { s.Run() },
		func() { s.Run() },
	}
	for i, step := range steps {
		step()
		checkInvariants(t, s)
		if t.Failed() {
			t.Fatalf("invariants broken after step %d", i)
		}
	}
	if s.Requiring(drive) == nil || s.Requiring(arm) == nil {
		t.Error("defaults should own drive and arm at the end")
	}
}
