package program

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/botsched/pkg/command"
	"github.com/me/botsched/pkg/model"
)

type fakeInputs struct {
	state model.StationState
}

func (f *fakeInputs) State() model.StationState { return f.state }

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	p, err := Parse([]byte(src))
	require.NoError(t, err)
	return p
}

// fieldPaths extracts the reported paths from a validation error.
func fieldPaths(t *testing.T, err error) []string {
	t.Helper()
	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr), "expected *model.APIError, got %T: %v", err, err)
	assert.Equal(t, model.ErrValidation, apiErr.Code)
	var paths []string
	for _, d := range apiErr.Details {
		paths = append(paths, d.Path)
	}
	return paths
}

func TestParse_ShorthandReference(t *testing.T) {
	p := mustParse(t, `
name: short
commands:
  a: {kind: print, message: hi}
  b:
    kind: sequence
    steps: [a, {kind: wait, seconds: 0.5}]
`)
	steps := p.Commands["b"].Steps
	require.Len(t, steps, 2)
	assert.Equal(t, KindRef, steps[0].Kind)
	assert.Equal(t, "a", steps[0].Ref)
	assert.Equal(t, KindWait, steps[1].Kind)
	assert.Equal(t, 0.5, steps[1].Seconds)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("name: x\nunknown: 1\n"))
	assert.Error(t, err, "unknown fields are rejected")

	_, err = Parse([]byte(""))
	assert.Error(t, err)

	_, err = Parse([]byte("commands: [1, 2"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	p, err := Load("testdata/demo.yaml")
	require.NoError(t, err)
	assert.Equal(t, "demo", p.Name)
	assert.Len(t, p.Subsystems, 2)
	assert.Equal(t, "auto", p.Autonomous)

	_, err = Load("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	p := mustParse(t, `
name: broken
lib: ["function ("]
subsystems:
  - name: drive
    default: nothing
  - name: drive
commands:
  a: {kind: jump}
  b: {kind: waitUntil}
  c: {kind: wait, seconds: -1, requires: [legs]}
  d: {kind: conditional, condition: "buttons.a &&"}
  e: {kind: sequence, steps: [missing]}
  f: {kind: run, output: {wheels: {speed: 1}}}
  g: {kind: repeat}
  h: {timeout: -2}
bindings:
  - when: ""
    action: onPress
    command: ghost
autonomous: ghost
`)
	paths := fieldPaths(t, Validate(p))

	for _, want := range []string{
		"lib",
		"subsystems[0].default",
		"subsystems[1].name",
		"commands.a.kind",
		"commands.b.condition",
		"commands.c.seconds",
		"commands.c.requires[0]",
		"commands.d.condition",
		"commands.d.onTrue",
		"commands.d.onFalse",
		"commands.e.steps[0].ref",
		"commands.f.output.wheels",
		"commands.g.command",
		"commands.h.timeout",
		"commands.h.kind",
		"bindings[0].when",
		"bindings[0].action",
		"bindings[0].command",
		"autonomous",
	} {
		assert.Contains(t, paths, want)
	}
}

func TestValidate_Cycle(t *testing.T) {
	p := mustParse(t, `
commands:
  a: {kind: sequence, steps: [b]}
  b: {kind: repeat, command: c}
  c: {kind: proxy, command: a}
  d: {kind: print, message: fine}
`)
	err := Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program validation failed")

	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Len(t, apiErr.Details, 1)
	assert.Contains(t, apiErr.Details[0].Message, "a, b, c")
}

func TestValidate_SelfReference(t *testing.T) {
	p := mustParse(t, `
commands:
  loop: {kind: sequence, steps: [loop]}
`)
	paths := fieldPaths(t, Validate(p))
	assert.Equal(t, []string{"commands"}, paths)
}

func TestValidate_ParallelSharedRequirement(t *testing.T) {
	p := mustParse(t, `
subsystems:
  - name: drive
commands:
  move: {kind: run, output: {drive: {speed: 1}}}
  both:
    kind: parallel
    steps:
      - move
      - {kind: wait, seconds: 1, requires: [drive]}
  ok:
    kind: sequence
    steps: [move, move]
  viaProxy:
    kind: parallel
    steps:
      - move
      - {kind: proxy, command: move}
`)
	paths := fieldPaths(t, Validate(p))
	require.Len(t, paths, 1)
	assert.True(t, strings.HasPrefix(paths[0], "commands.both.steps["), "got %v", paths)
}

func TestValidate_DefaultMustRequireSubsystem(t *testing.T) {
	p := mustParse(t, `
subsystems:
  - name: drive
    default: idle
commands:
  idle: {kind: print, message: idle}
`)
	paths := fieldPaths(t, Validate(p))
	assert.Equal(t, []string{"subsystems[0].default"}, paths)
}

func TestValidate_Valid(t *testing.T) {
	p, err := Load("testdata/demo.yaml")
	require.NoError(t, err)
	assert.NoError(t, Validate(p))
}

func buildDemo(t *testing.T) (*Robot, *command.Scheduler, *fakeInputs, *manualClock, *bytes.Buffer) {
	t.Helper()
	p, err := Load("testdata/demo.yaml")
	require.NoError(t, err)

	inputs := &fakeInputs{state: model.StationState{Enabled: true, Buttons: map[string]bool{}}}
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var out bytes.Buffer
	sched := command.NewScheduler()
	robot, err := Build(p, sched, Options{Inputs: inputs, Out: &out, Clock: clock, Logger: discardLogger()})
	require.NoError(t, err)
	return robot, sched, inputs, clock, &out
}

func TestBuild_DefaultsAndBindings(t *testing.T) {
	robot, sched, inputs, _, _ := buildDemo(t)
	drive := robot.Mechanism("drive")
	require.NotNil(t, drive)

	sched.Run() // idle scheduled at the end of the tick
	sched.Run()
	assert.Equal(t, 0, drive.Outputs()["speed"])
	assert.Equal(t, "idle", sched.Requiring(drive).Name())

	inputs.state.Buttons["a"] = true
	sched.Run()
	assert.Equal(t, 1, drive.Outputs()["speed"])
	assert.Equal(t, "forward", sched.Requiring(drive).Name())

	inputs.state.Buttons["a"] = false
	sched.Run()
	assert.Equal(t, "idle", sched.Requiring(drive).Name(), "default resumes in the tick the binding cancels")
	sched.Run()
	assert.Equal(t, 0, drive.Outputs()["speed"])

	assert.Equal(t, uint64(5), drive.Cycles())
}

func TestBuild_AutonomousInstantiatesTemplatesFresh(t *testing.T) {
	robot, sched, _, clock, out := buildDemo(t)

	require.NoError(t, robot.ScheduleAutonomous())
	assert.Equal(t, 90, robot.Outputs()["arm"]["angle"])
	arm := robot.Mechanism("arm")
	require.NotNil(t, sched.Requiring(arm))
	assert.Equal(t, "auto", sched.Requiring(arm).Name())

	for range 3 {
		sched.Run()
	}
	clock.Advance(time.Second)
	for range 4 {
		sched.Run()
	}
	assert.Equal(t, "raised\nraised\n", out.String())
	assert.Nil(t, sched.Requiring(arm), "autonomous should have finished")
}

func TestBuild_UntilAndTimeout(t *testing.T) {
	p := mustParse(t, `
subsystems:
  - name: shooter
commands:
  spin:
    kind: run
    output: {shooter: {rpm: 3000}}
    until: buttons.stop
    interruptible: false
  spinBriefly:
    kind: run
    output: {shooter: {rpm: 1000}}
    timeout: 2
`)
	inputs := &fakeInputs{state: model.StationState{Buttons: map[string]bool{}}}
	clock := &manualClock{now: time.Unix(0, 0)}
	sched := command.NewScheduler()
	robot, err := Build(p, sched, Options{Inputs: inputs, Clock: clock, Logger: discardLogger()})
	require.NoError(t, err)

	spin, err := robot.Instantiate("spin")
	require.NoError(t, err)
	assert.Equal(t, "spin", spin.Name())
	assert.Equal(t, command.CancelIncoming, spin.InterruptionBehavior())
	assert.True(t, spin.HasRequirement(robot.Mechanism("shooter")))

	require.NoError(t, sched.Schedule(spin))
	sched.Run()
	assert.True(t, sched.IsScheduled(spin))
	inputs.state.Buttons["stop"] = true
	sched.Run()
	assert.False(t, sched.IsScheduled(spin))

	brief, err := robot.Instantiate("spinBriefly")
	require.NoError(t, err)
	require.NoError(t, sched.Schedule(brief))
	sched.Run()
	clock.Advance(2 * time.Second)
	sched.Run()
	assert.False(t, sched.IsScheduled(brief))
	assert.Equal(t, 1000, robot.Outputs()["shooter"]["rpm"])
}

func TestBuild_ConditionalUsesOutputs(t *testing.T) {
	p := mustParse(t, `
subsystems:
  - name: arm
commands:
  lift: {kind: instant, output: {arm: {angle: 45}}}
  check:
    kind: conditional
    condition: "outputs.arm.angle > 30"
    onTrue: {kind: print, message: high}
    onFalse: {kind: print, message: low}
`)
	var out bytes.Buffer
	sched := command.NewScheduler()
	robot, err := Build(p, sched, Options{Out: &out, Logger: discardLogger()})
	require.NoError(t, err)

	check, err := robot.Instantiate("check")
	require.NoError(t, err)
	require.NoError(t, sched.Schedule(check))
	sched.Run()

	lift, err := robot.Instantiate("lift")
	require.NoError(t, err)
	require.NoError(t, sched.Schedule(lift))
	check, err = robot.Instantiate("check")
	require.NoError(t, err)
	require.NoError(t, sched.Schedule(check))

	assert.Equal(t, "low\nhigh\n", out.String())
}

func TestBuild_SubsystemDisabledPolicy(t *testing.T) {
	p := mustParse(t, `
subsystems:
  - name: arm
    runsWhenDisabled: false
commands:
  hold: {kind: run, output: {arm: {angle: 0}}}
  holdAlways: {kind: run, output: {arm: {angle: 0}}, runsWhenDisabled: true}
`)
	sched := command.NewScheduler()
	robot, err := Build(p, sched, Options{Logger: discardLogger()})
	require.NoError(t, err)

	hold, err := robot.Instantiate("hold")
	require.NoError(t, err)
	assert.False(t, hold.RunsWhenDisabled())

	always, err := robot.Instantiate("holdAlways")
	require.NoError(t, err)
	assert.True(t, always.RunsWhenDisabled())
}

func TestBuild_RejectsInvalidProgram(t *testing.T) {
	p := mustParse(t, `commands: {a: {kind: jump}}`)
	_, err := Build(p, command.NewScheduler(), Options{})
	assert.Error(t, err)
}

func TestInstantiate_UnknownTemplate(t *testing.T) {
	p := mustParse(t, `commands: {a: {kind: print, message: x}}`)
	robot, err := Build(p, command.NewScheduler(), Options{Logger: discardLogger()})
	require.NoError(t, err)
	_, err = robot.Instantiate("b")
	assert.Error(t, err)
}
