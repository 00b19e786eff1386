package telemetry

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/me/botsched/pkg/command"
	"github.com/me/botsched/pkg/model"
)

// EventSink persists command lifecycle events.
type EventSink interface {
	AppendEvents(ctx context.Context, events []model.CommandEvent) error
}

// Recorder collects command lifecycle events from scheduler hooks and hands
// them, one batch per tick, to a writer goroutine.
//
// Hook callbacks, Publish and Close run on the control goroutine. Run is the
// writer and may run anywhere.
type Recorder struct {
	runID  string
	sink   EventSink
	logger *slog.Logger
	now    func() time.Time
	sched  *command.Scheduler

	pending []model.CommandEvent
	batches chan []model.CommandEvent
	closed  bool

	written atomic.Uint64
	dropped atomic.Uint64
}

// NewRecorder creates a recorder for runID. queue bounds how many tick
// batches may wait for the writer before new batches are dropped.
func NewRecorder(runID string, sink EventSink, queue int, logger *slog.Logger) *Recorder {
	if queue <= 0 {
		queue = 256
	}
	return &Recorder{
		runID:   runID,
		sink:    sink,
		logger:  logger.With("component", "recorder"),
		now:     time.Now,
		batches: make(chan []model.CommandEvent, queue),
	}
}

// Attach registers the recorder's hooks on s. The recorder must also be
// registered as a publisher of s so batches are cut at the end of each tick.
func (r *Recorder) Attach(s *command.Scheduler) {
	r.sched = s
	s.OnCommandInitialize(func(c command.Command) {
		r.record(c, model.EventInitialize, nil)
	})
	s.OnCommandFinish(func(c command.Command) {
		r.record(c, model.EventFinish, nil)
	})
	s.OnCommandInterruptWithCause(func(c, cause command.Command) {
		r.record(c, model.EventInterrupt, cause)
	})
}

func (r *Recorder) record(c command.Command, kind model.EventKind, cause command.Command) {
	ev := model.CommandEvent{
		RunID:   r.runID,
		Command: c.Name(),
		Event:   kind,
		At:      r.now().UTC(),
	}
	if r.sched != nil {
		ev.Tick = r.sched.Tick()
	}
	if cause != nil {
		ev.Cause = cause.Name()
	}
	r.pending = append(r.pending, ev)
}

// Publish implements command.Publisher by queueing the events of the tick
// that just ended.
func (r *Recorder) Publish(command.Snapshot) {
	r.flush()
}

func (r *Recorder) flush() {
	if len(r.pending) == 0 || r.closed {
		return
	}
	batch := r.pending
	r.pending = nil
	select {
	case r.batches <- batch:
	default:
		r.dropped.Add(uint64(len(batch)))
		r.logger.Warn("event queue full, dropping batch", "events", len(batch), "tick", batch[0].Tick)
	}
}

// Close queues any events recorded since the last tick and stops the writer
// once the queue drains. Call it after the robot loop has stopped.
func (r *Recorder) Close() {
	if r.closed {
		return
	}
	r.flush()
	r.closed = true
	close(r.batches)
}

// Run writes queued batches until Close is called and the queue is empty.
// Write failures are logged and the batch is discarded.
func (r *Recorder) Run(ctx context.Context) error {
	for batch := range r.batches {
		if err := r.sink.AppendEvents(ctx, batch); err != nil {
			r.dropped.Add(uint64(len(batch)))
			r.logger.Error("persist events", "events", len(batch), "error", err)
			continue
		}
		r.written.Add(uint64(len(batch)))
	}
	r.logger.Debug("recorder stopped", "written", r.written.Load(), "dropped", r.dropped.Load())
	return nil
}

// Written returns how many events were persisted.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

// Dropped returns how many events were lost to a full queue or a write error.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}
