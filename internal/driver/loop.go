// Package driver runs a command scheduler at a fixed control-cycle period
// and is the only goroutine that touches it. Other goroutines reach the
// scheduler through requests that the loop applies at the start of a tick.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/botsched/pkg/command"
)

// ErrStopped is returned for requests submitted to a loop that has stopped.
var ErrStopped = errors.New("robot loop stopped")

// ErrNoSuchCommand is returned when a cancel-by-name request matches no
// running command.
var ErrNoSuchCommand = errors.New("no running command with that name")

// FaultError reports a panic raised by command or subsystem code during a
// tick. The scheduler state is undefined afterwards, so the loop stops.
type FaultError struct {
	Tick  uint64
	Value any
	Stack []byte
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("%s at tick %d: %v", command.ErrCallbackFault, e.Tick, e.Value)
}

// Unwrap lets errors.Is match command.ErrCallbackFault.
func (e *FaultError) Unwrap() error {
	return command.ErrCallbackFault
}

// Station supplies the robot enable signal.
type Station interface {
	Enabled() bool
}

// Config holds robot loop configuration.
type Config struct {
	Period   time.Duration
	MaxTicks uint64 // Stop after this many ticks (0 = unbounded)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Period: 20 * time.Millisecond}
}

type request struct {
	fn   func(*command.Scheduler) error
	done chan error
}

// Loop drives a Scheduler once per period.
type Loop struct {
	sched    *command.Scheduler
	station  Station
	config   Config
	logger   *slog.Logger
	requests chan request
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	overruns atomic.Uint64
}

// NewLoop creates a robot loop. A nil station keeps the robot enabled.
func NewLoop(sched *command.Scheduler, station Station, cfg Config, logger *slog.Logger) *Loop {
	return &Loop{
		sched:    sched,
		station:  station,
		config:   cfg,
		logger:   logger.With("component", "driver"),
		requests: make(chan request, 16),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs ticks until ctx is cancelled, Stop is called, the tick limit is
// reached, or a callback faults. A fault is returned as a *FaultError.
func (l *Loop) Start(ctx context.Context) error {
	l.started.Store(true)
	defer close(l.doneCh)

	l.logger.Info("robot loop started", "period", l.config.Period, "max_ticks", l.config.MaxTicks)
	ticker := time.NewTicker(l.config.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("robot loop stopping (context cancelled)", "ticks", l.sched.Tick())
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("robot loop stopping (stop called)", "ticks", l.sched.Tick())
			return nil
		case <-ticker.C:
			if err := l.Tick(ctx); err != nil {
				l.logger.Error("robot loop fault", "error", err)
				return err
			}
			if l.config.MaxTicks > 0 && l.sched.Tick() >= l.config.MaxTicks {
				l.logger.Info("robot loop stopping (tick limit reached)", "ticks", l.sched.Tick())
				return nil
			}
		}
	}
}

// Stop shuts down the loop and waits for the current tick to finish.
func (l *Loop) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	if l.started.Load() {
		<-l.doneCh
	}
	return nil
}

// Tick runs a single control cycle. Used directly by tests.
func (l *Loop) Tick(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			err = &FaultError{Tick: l.sched.Tick(), Value: v, Stack: debug.Stack()}
		}
	}()

	// Phase 1: Apply operator requests queued since the last tick.
	l.drainRequests()

	// Phase 2: Mirror the enable signal.
	enabled := l.station == nil || l.station.Enabled()
	if l.sched.Disabled() == enabled {
		l.logger.Info("robot enable changed", "enabled", enabled, "tick", l.sched.Tick())
	}
	l.sched.SetDisabled(!enabled)

	// Phase 3: Run the scheduler.
	l.sched.Run()

	// Phase 4: Detect overruns.
	if elapsed := time.Since(start); elapsed > l.config.Period {
		l.overruns.Add(1)
		l.logger.Warn("loop overrun", "tick", l.sched.Tick(), "elapsed", elapsed, "period", l.config.Period)
	}
	return nil
}

func (l *Loop) drainRequests() {
	for {
		select {
		case req := <-l.requests:
			req.done <- req.fn(l.sched)
		default:
			return
		}
	}
}

// Overruns returns how many ticks took longer than the period.
func (l *Loop) Overruns() uint64 {
	return l.overruns.Load()
}

// Do queues fn to run on the loop goroutine at the start of the next tick and
// waits for its result.
func (l *Loop) Do(ctx context.Context, fn func(*command.Scheduler) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case l.requests <- req:
	case <-l.doneCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-l.doneCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelByName interrupts every running command with the given name and
// returns how many were canceled.
func (l *Loop) CancelByName(ctx context.Context, name string) (int, error) {
	var n int
	err := l.Do(ctx, func(s *command.Scheduler) error {
		for _, c := range s.Running() {
			if c.Name() != name {
				continue
			}
			if err := s.Cancel(c); err != nil {
				return err
			}
			n++
		}
		if n == 0 {
			return fmt.Errorf("%w: %q", ErrNoSuchCommand, name)
		}
		return nil
	})
	if err == nil {
		l.logger.Info("commands canceled by request", "command", name, "count", n)
	}
	return n, err
}

// CancelAll interrupts every running command.
func (l *Loop) CancelAll(ctx context.Context) error {
	err := l.Do(ctx, func(s *command.Scheduler) error {
		s.CancelAll()
		return nil
	})
	if err == nil {
		l.logger.Info("all commands canceled by request")
	}
	return err
}
