// Package program loads robot programs: YAML files declaring subsystems,
// reusable command templates and trigger bindings. A validated program is
// built onto a command.Scheduler with Build.
package program

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Command kinds.
const (
	KindPrint       = "print"
	KindWait        = "wait"
	KindWaitUntil   = "waitUntil"
	KindInstant     = "instant"
	KindRun         = "run"
	KindRef         = "ref"
	KindSequence    = "sequence"
	KindParallel    = "parallel"
	KindRace        = "race"
	KindDeadline    = "deadline"
	KindConditional = "conditional"
	KindRepeat      = "repeat"
	KindProxy       = "proxy"
)

// Program is a parsed robot program.
type Program struct {
	Name       string                  `yaml:"name"`
	Lib        []string                `yaml:"lib,omitempty"`
	Subsystems []SubsystemSpec         `yaml:"subsystems"`
	Commands   map[string]*CommandSpec `yaml:"commands"`
	Bindings   []BindingSpec           `yaml:"bindings,omitempty"`
	// Autonomous names a template scheduled once when the robot starts.
	Autonomous string `yaml:"autonomous,omitempty"`
}

// SubsystemSpec declares a subsystem.
type SubsystemSpec struct {
	Name    string `yaml:"name"`
	Default string `yaml:"default,omitempty"`
	// RunsWhenDisabled set to false stops commands requiring this subsystem
	// while the robot is disabled, unless they say otherwise.
	RunsWhenDisabled *bool `yaml:"runsWhenDisabled,omitempty"`
}

// CommandSpec describes a command. In YAML a bare string is shorthand for a
// reference to the template with that name.
type CommandSpec struct {
	Kind string `yaml:"kind"`

	Name             string   `yaml:"name,omitempty"`
	Requires         []string `yaml:"requires,omitempty"`
	Interruptible    *bool    `yaml:"interruptible,omitempty"`
	RunsWhenDisabled *bool    `yaml:"runsWhenDisabled,omitempty"`
	Until            string   `yaml:"until,omitempty"`
	Timeout          float64  `yaml:"timeout,omitempty"`

	Message   string                    `yaml:"message,omitempty"`
	Seconds   float64                   `yaml:"seconds,omitempty"`
	Condition string                    `yaml:"condition,omitempty"`
	Output    map[string]map[string]any `yaml:"output,omitempty"`
	Ref       string                    `yaml:"ref,omitempty"`
	Steps     []*CommandSpec            `yaml:"steps,omitempty"`
	Deadline  *CommandSpec              `yaml:"deadline,omitempty"`
	OnTrue    *CommandSpec              `yaml:"onTrue,omitempty"`
	OnFalse   *CommandSpec              `yaml:"onFalse,omitempty"`
	Command   *CommandSpec              `yaml:"command,omitempty"`
}

// UnmarshalYAML accepts either a mapping or a template name.
func (c *CommandSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*c = CommandSpec{Kind: KindRef, Ref: value.Value}
		return nil
	}
	type plain CommandSpec
	return value.Decode((*plain)(c))
}

// BindingSpec binds a template to the edges of a condition expression.
type BindingSpec struct {
	When    string `yaml:"when"`
	Action  string `yaml:"action"`
	Command string `yaml:"command"`
}

// Parse decodes a program from YAML. Unknown top-level fields are rejected.
// The result is not validated.
func Parse(data []byte) (*Program, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var p Program
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse program: empty document")
		}
		return nil, fmt.Errorf("parse program: %w", err)
	}
	if p.Commands == nil {
		p.Commands = map[string]*CommandSpec{}
	}
	return &p, nil
}

// Load reads, parses and validates the program at path.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}
