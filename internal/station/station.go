// Package station simulates the operator console: the robot enable signal
// and a set of named buttons. State can be changed through the API or by
// editing an inputs file that is reloaded on change.
package station

import (
	"fmt"
	"maps"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/me/botsched/pkg/model"
)

// Station holds operator input state. It is safe for concurrent use: the
// robot loop reads it every tick while the API and the file watcher write it.
type Station struct {
	mu      sync.RWMutex
	enabled bool
	buttons map[string]bool
}

// New creates a station with the given enable signal and no buttons pressed.
func New(enabled bool) *Station {
	return &Station{enabled: enabled, buttons: map[string]bool{}}
}

// Enabled reports the robot enable signal.
func (s *Station) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetEnabled sets the robot enable signal.
func (s *Station) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Button reports whether the named button is pressed. Unknown buttons are
// released.
func (s *Station) Button(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buttons[name]
}

// SetButton presses or releases a button.
func (s *Station) SetButton(name string, pressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buttons[name] = pressed
}

// State returns a copy of the current state.
func (s *Station) State() model.StationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.StationState{Enabled: s.enabled, Buttons: maps.Clone(s.buttons)}
}

// Apply replaces the whole state. Buttons missing from st are released.
func (s *Station) Apply(st model.StationState) {
	buttons := maps.Clone(st.Buttons)
	if buttons == nil {
		buttons = map[string]bool{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = st.Enabled
	s.buttons = buttons
}

// LoadFile applies the YAML inputs file at path.
//
//	enabled: true
//	buttons:
//	  a: true
//	  trigger: false
func (s *Station) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read inputs: %w", err)
	}
	var st model.StationState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("parse inputs %s: %w", path, err)
	}
	s.Apply(st)
	return nil
}
