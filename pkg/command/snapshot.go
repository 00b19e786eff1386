package command

// Ownership records which running command owns a subsystem.
type Ownership struct {
	Subsystem string
	Command   string
}

// Snapshot is a read-only view of the scheduler taken at the end of a Run.
type Snapshot struct {
	Tick     uint64
	Disabled bool
	Running  []string
	Owners   []Ownership
}

// Publisher receives a Snapshot after every Run. Publish is called on the
// control goroutine and must not block.
type Publisher interface {
	Publish(Snapshot)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(Snapshot)

// Publish calls f(snap).
func (f PublisherFunc) Publish(snap Snapshot) { f(snap) }

// Snapshot returns the running command names in scheduling order and the
// ownership table, ordered by running command and then by requirement.
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:     s.tick,
		Disabled: s.disabled,
		Running:  make([]string, 0, len(s.running)),
	}
	for _, c := range s.running {
		snap.Running = append(snap.Running, c.Name())
		for _, r := range c.Requirements() {
			if s.requirements[r] == c {
				snap.Owners = append(snap.Owners, Ownership{Subsystem: r.Name(), Command: c.Name()})
			}
		}
	}
	return snap
}
