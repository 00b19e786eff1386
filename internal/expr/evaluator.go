// Package expr evaluates the JavaScript condition expressions used by robot
// programs, such as "buttons.a && !enabled" or "outputs.arm.angle > 90".
package expr

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// Condition is a compiled expression.
type Condition struct {
	src  string
	prog *goja.Program
}

// Compile parses src as a JavaScript expression. Syntax errors are reported
// here so that programs can be validated before they run.
func Compile(src string) (*Condition, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty expression")
	}
	prog, err := goja.Compile("condition", src, true)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, err)
	}
	return &Condition{src: src, prog: prog}, nil
}

// String returns the expression source.
func (c *Condition) String() string {
	return c.src
}

// Evaluator runs compiled conditions against a Context. An Evaluator owns a
// single JavaScript runtime and must only be used from one goroutine.
type Evaluator struct {
	vm *goja.Runtime
}

// NewEvaluator creates an evaluator. The library sources are run once and may
// define helper functions for conditions.
func NewEvaluator(lib []string) (*Evaluator, error) {
	vm := goja.New()
	for i, src := range lib {
		if _, err := vm.RunString(src); err != nil {
			return nil, fmt.Errorf("lib[%d]: %w", i, err)
		}
	}
	return &Evaluator{vm: vm}, nil
}

func (e *Evaluator) bind(ctx *Context) error {
	if ctx == nil {
		ctx = NewContext()
	}
	if err := e.vm.Set("buttons", ctx.buttons()); err != nil {
		return fmt.Errorf("set buttons: %w", err)
	}
	if err := e.vm.Set("enabled", ctx.Enabled); err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if err := e.vm.Set("tick", ctx.Tick); err != nil {
		return fmt.Errorf("set tick: %w", err)
	}
	if err := e.vm.Set("outputs", ctx.outputs()); err != nil {
		return fmt.Errorf("set outputs: %w", err)
	}
	return nil
}

// Value evaluates c and exports the result to a Go value.
func (e *Evaluator) Value(c *Condition, ctx *Context) (any, error) {
	if err := e.bind(ctx); err != nil {
		return nil, err
	}
	val, err := e.vm.RunProgram(c.prog)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", c.src, err)
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	return val.Export(), nil
}

// Bool evaluates c using JavaScript truthiness.
func (e *Evaluator) Bool(c *Condition, ctx *Context) (bool, error) {
	if err := e.bind(ctx); err != nil {
		return false, err
	}
	val, err := e.vm.RunProgram(c.prog)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", c.src, err)
	}
	if val == nil {
		return false, nil
	}
	return val.ToBoolean(), nil
}
