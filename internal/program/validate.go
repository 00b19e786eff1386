package program

import (
	"fmt"
	"sort"

	"github.com/me/botsched/internal/expr"
	"github.com/me/botsched/pkg/command"
	"github.com/me/botsched/pkg/model"
)

// Validate checks a parsed program and reports every problem it finds.
// Returns nil if valid, or a *model.APIError with one FieldError per problem.
func Validate(p *Program) error {
	v := &validator{p: p, subsystems: map[string]bool{}}
	v.validateSubsystems()
	v.validateLib()
	v.validateCommands()
	v.validateRequirements()
	v.validateBindings()
	v.validateAutonomous()

	if len(v.errs) == 0 {
		return nil
	}
	return model.NewValidationError("program validation failed", v.errs...)
}

type validator struct {
	p          *Program
	subsystems map[string]bool
	errs       []model.FieldError
}

func (v *validator) fail(path, format string, args ...any) {
	v.errs = append(v.errs, model.FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) sortedTemplates() []string {
	names := make([]string, 0, len(v.p.Commands))
	for name := range v.p.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (v *validator) validateSubsystems() {
	for i, sub := range v.p.Subsystems {
		path := fmt.Sprintf("subsystems[%d]", i)
		if sub.Name == "" {
			v.fail(path+".name", "subsystem name is required")
			continue
		}
		if v.subsystems[sub.Name] {
			v.fail(path+".name", "duplicate subsystem %q", sub.Name)
			continue
		}
		v.subsystems[sub.Name] = true
		if sub.Default != "" {
			if _, ok := v.p.Commands[sub.Default]; !ok {
				v.fail(path+".default", "unknown command template %q", sub.Default)
			}
		}
	}
}

func (v *validator) validateLib() {
	if len(v.p.Lib) == 0 {
		return
	}
	if _, err := expr.NewEvaluator(v.p.Lib); err != nil {
		v.fail("lib", "%v", err)
	}
}

func (v *validator) validateCommands() {
	for _, name := range v.sortedTemplates() {
		if name == "" {
			v.fail("commands", "template name is required")
			continue
		}
		v.validateCommand(v.p.Commands[name], "commands."+name)
	}
}

func (v *validator) expression(path, src string) {
	if _, err := expr.Compile(src); err != nil {
		v.fail(path, "%v", err)
	}
}

func (v *validator) validateCommand(spec *CommandSpec, path string) {
	if spec == nil {
		v.fail(path, "command is empty")
		return
	}

	for i, r := range spec.Requires {
		if !v.subsystems[r] {
			v.fail(fmt.Sprintf("%s.requires[%d]", path, i), "unknown subsystem %q", r)
		}
	}
	if spec.Until != "" {
		v.expression(path+".until", spec.Until)
	}
	if spec.Timeout < 0 {
		v.fail(path+".timeout", "timeout must not be negative")
	}

	switch spec.Kind {
	case KindPrint:
	case KindWait:
		if spec.Seconds < 0 {
			v.fail(path+".seconds", "seconds must not be negative")
		}
	case KindWaitUntil:
		if spec.Condition == "" {
			v.fail(path+".condition", "waitUntil requires a condition")
		} else {
			v.expression(path+".condition", spec.Condition)
		}
	case KindInstant, KindRun:
		for sub := range spec.Output {
			if !v.subsystems[sub] {
				v.fail(path+".output."+sub, "unknown subsystem %q", sub)
			}
		}
	case KindRef:
		if spec.Ref == "" {
			v.fail(path+".ref", "ref requires a template name")
		} else if _, ok := v.p.Commands[spec.Ref]; !ok {
			v.fail(path+".ref", "unknown command template %q", spec.Ref)
		}
	case KindSequence, KindParallel, KindRace:
		for i, step := range spec.Steps {
			v.validateCommand(step, fmt.Sprintf("%s.steps[%d]", path, i))
		}
	case KindDeadline:
		if spec.Deadline == nil {
			v.fail(path+".deadline", "deadline requires a deadline command")
		} else {
			v.validateCommand(spec.Deadline, path+".deadline")
		}
		for i, step := range spec.Steps {
			v.validateCommand(step, fmt.Sprintf("%s.steps[%d]", path, i))
		}
	case KindConditional:
		if spec.Condition == "" {
			v.fail(path+".condition", "conditional requires a condition")
		} else {
			v.expression(path+".condition", spec.Condition)
		}
		if spec.OnTrue == nil {
			v.fail(path+".onTrue", "conditional requires onTrue")
		} else {
			v.validateCommand(spec.OnTrue, path+".onTrue")
		}
		if spec.OnFalse == nil {
			v.fail(path+".onFalse", "conditional requires onFalse")
		} else {
			v.validateCommand(spec.OnFalse, path+".onFalse")
		}
	case KindRepeat, KindProxy:
		if spec.Command == nil {
			v.fail(path+".command", "%s requires a command", spec.Kind)
		} else {
			v.validateCommand(spec.Command, path+".command")
		}
	case "":
		v.fail(path+".kind", "command kind is required")
	default:
		v.fail(path+".kind", "unknown command kind %q", spec.Kind)
	}
}

// validateRequirements derives every template's requirement set, rejects
// parallel compositions whose children share a subsystem, and checks that
// default commands require their subsystem. Skipped when templates form a
// cycle, since requirement sets are then undefined.
func (v *validator) validateRequirements() {
	order, err := templateOrder(v.p.Commands)
	if err != nil {
		v.fail("commands", "%v", err)
		return
	}

	memo := make(map[string]map[string]bool, len(order))
	for _, name := range order {
		memo[name] = v.requirements(v.p.Commands[name], "commands."+name, memo)
	}

	for i, sub := range v.p.Subsystems {
		reqs, ok := memo[sub.Default]
		if sub.Default == "" || !ok {
			continue
		}
		if !reqs[sub.Name] {
			v.fail(fmt.Sprintf("subsystems[%d].default", i), "default command %q does not require subsystem %q", sub.Default, sub.Name)
		}
	}
}

// requirements returns the subsystems a command built from spec will claim.
// Writing a subsystem's output implies requiring it.
func (v *validator) requirements(spec *CommandSpec, path string, memo map[string]map[string]bool) map[string]bool {
	reqs := map[string]bool{}
	if spec == nil {
		return reqs
	}
	for _, r := range spec.Requires {
		reqs[r] = true
	}
	for sub := range spec.Output {
		reqs[sub] = true
	}

	switch spec.Kind {
	case KindRef:
		for r := range memo[spec.Ref] {
			reqs[r] = true
		}
	case KindProxy:
		// The proxied command arbitrates for its own subsystems; its
		// compositions are still checked.
		paths := childPaths(spec, path)
		for i, child := range spec.children() {
			v.requirements(child, paths[i], memo)
		}
	case KindParallel, KindRace, KindDeadline:
		claimed := map[string]string{}
		paths := childPaths(spec, path)
		for i, child := range spec.children() {
			for r := range v.requirements(child, paths[i], memo) {
				if other, dup := claimed[r]; dup {
					v.fail(paths[i], "subsystem %q is also required by %s; children of a %s must not share requirements", r, other, spec.Kind)
				}
				claimed[r] = paths[i]
				reqs[r] = true
			}
		}
	default:
		paths := childPaths(spec, path)
		for i, child := range spec.children() {
			for r := range v.requirements(child, paths[i], memo) {
				reqs[r] = true
			}
		}
	}
	return reqs
}

func (v *validator) validateBindings() {
	for i, b := range v.p.Bindings {
		path := fmt.Sprintf("bindings[%d]", i)
		if b.When == "" {
			v.fail(path+".when", "binding requires a condition")
		} else {
			v.expression(path+".when", b.When)
		}
		if _, err := command.ParseTriggerAction(b.Action); err != nil {
			v.fail(path+".action", "%v", err)
		}
		if b.Command == "" {
			v.fail(path+".command", "binding requires a command template")
		} else if _, ok := v.p.Commands[b.Command]; !ok {
			v.fail(path+".command", "unknown command template %q", b.Command)
		}
	}
}

func (v *validator) validateAutonomous() {
	if v.p.Autonomous == "" {
		return
	}
	if _, ok := v.p.Commands[v.p.Autonomous]; !ok {
		v.fail("autonomous", "unknown command template %q", v.p.Autonomous)
	}
}
