package program

import (
	"fmt"
	"sort"
	"strings"
)

// refs returns the distinct template names referenced anywhere inside spec.
func refs(spec *CommandSpec) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(*CommandSpec)
	walk = func(s *CommandSpec) {
		if s == nil {
			return
		}
		if s.Kind == KindRef && s.Ref != "" && !seen[s.Ref] {
			seen[s.Ref] = true
			out = append(out, s.Ref)
		}
		for _, c := range s.children() {
			walk(c)
		}
	}
	walk(spec)
	sort.Strings(out)
	return out
}

// children returns the nested specs of s in declaration order.
func (s *CommandSpec) children() []*CommandSpec {
	var out []*CommandSpec
	if s.Deadline != nil {
		out = append(out, s.Deadline)
	}
	out = append(out, s.Steps...)
	for _, c := range []*CommandSpec{s.OnTrue, s.OnFalse, s.Command} {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// childPaths returns the document path of each entry of s.children().
func childPaths(s *CommandSpec, path string) []string {
	var out []string
	if s.Deadline != nil {
		out = append(out, path+".deadline")
	}
	for i := range s.Steps {
		out = append(out, fmt.Sprintf("%s.steps[%d]", path, i))
	}
	if s.OnTrue != nil {
		out = append(out, path+".onTrue")
	}
	if s.OnFalse != nil {
		out = append(out, path+".onFalse")
	}
	if s.Command != nil {
		out = append(out, path+".command")
	}
	return out
}

// templateOrder sorts templates so that every template comes after the
// templates it references, using Kahn's algorithm. References to unknown
// templates are ignored here and reported by Validate.
//
// Returns an error naming the templates involved if references form a cycle.
func templateOrder(commands map[string]*CommandSpec) ([]string, error) {
	// forward[A] = [B] means B references A, so A must be ordered first.
	forward := make(map[string][]string, len(commands))
	inDegree := make(map[string]int, len(commands))
	for name := range commands {
		inDegree[name] = 0
	}
	for name, spec := range commands {
		for _, dep := range refs(spec) {
			if _, ok := commands[dep]; !ok {
				continue
			}
			if dep == name {
				return nil, fmt.Errorf("template %q references itself", name)
			}
			forward[dep] = append(forward[dep], name)
			inDegree[name]++
		}
	}

	var queue []string
	for name, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(commands))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)

		next := forward[name]
		sort.Strings(next)
		for _, n := range next {
			inDegree[n]--
			if inDegree[n] == 0 {
				queue = append(queue, n)
			}
		}
	}

	if len(order) != len(commands) {
		var cyclic []string
		for name, deg := range inDegree {
			if deg > 0 {
				cyclic = append(cyclic, name)
			}
		}
		sort.Strings(cyclic)
		return nil, fmt.Errorf("template references form a cycle involving: %s", strings.Join(cyclic, ", "))
	}
	return order, nil
}
