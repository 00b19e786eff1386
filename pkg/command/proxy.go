package command

import "slices"

// Proxy schedules its target through the scheduler instead of composing it.
// The proxy itself has no requirements, so a composition containing it does
// not claim the target's subsystems; the target arbitrates for them on its own
// when the proxy initializes. The proxy finishes when the target is no longer
// scheduled and cancels the target if the proxy is interrupted.
type Proxy struct {
	Base
	sched  *Scheduler
	target Command
}

// NewProxy returns a proxy that schedules target on sched.
func NewProxy(sched *Scheduler, target Command) (*Proxy, error) {
	if sched == nil || target == nil {
		return nil, &UsageError{Reason: "proxy needs a scheduler and a target"}
	}
	if target.base().composed {
		return nil, usageError(target, "composed commands may not be proxied")
	}
	p := &Proxy{sched: sched, target: target}
	p.name = "Proxy(" + target.Name() + ")"
	return p, nil
}

func (p *Proxy) Initialize() {
	if err := p.sched.Schedule(p.target); err != nil {
		p.sched.logger.Error("proxy schedule failed", "command", p.target.Name(), "error", err)
	}
}

func (p *Proxy) IsFinished() bool {
	// Scheduled from within the execute pass and not flushed yet.
	if slices.Contains(p.sched.pending, p.target) {
		return false
	}
	return !p.sched.IsScheduled(p.target)
}

func (p *Proxy) End(interrupted bool) {
	if interrupted {
		if err := p.sched.Cancel(p.target); err != nil {
			p.sched.logger.Error("proxy cancel failed", "command", p.target.Name(), "error", err)
		}
	}
}
