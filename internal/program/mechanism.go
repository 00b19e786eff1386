package program

import (
	"maps"
	"sync"

	"github.com/me/botsched/pkg/command"
)

// Mechanism is a subsystem declared by a program. Instant and run commands
// write named output values to it, and condition expressions read them back
// through outputs.<subsystem>.<field>.
type Mechanism struct {
	command.SubsystemBase

	mu      sync.RWMutex
	outputs map[string]any
	cycles  uint64
}

func newMechanism(name string) *Mechanism {
	return &Mechanism{
		SubsystemBase: command.NewSubsystemBase(name),
		outputs:       map[string]any{},
	}
}

// Periodic counts control cycles.
func (m *Mechanism) Periodic() {
	m.mu.Lock()
	m.cycles++
	m.mu.Unlock()
}

// Cycles returns how many times Periodic has run.
func (m *Mechanism) Cycles() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cycles
}

// Set merges values into the mechanism outputs.
func (m *Mechanism) Set(values map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	maps.Copy(m.outputs, values)
}

// Outputs returns a copy of the current output values.
func (m *Mechanism) Outputs() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.outputs)
}
