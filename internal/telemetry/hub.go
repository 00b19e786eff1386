// Package telemetry turns scheduler snapshots and command lifecycle hooks into
// API views and persisted history.
package telemetry

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/me/botsched/pkg/command"
	"github.com/me/botsched/pkg/model"
)

// Hub keeps the latest scheduler snapshot and fans snapshots out to
// subscribers. Publish never blocks: a subscriber whose buffer is full misses
// that snapshot.
type Hub struct {
	runID string
	now   func() time.Time

	mu          sync.RWMutex
	latest      *model.SchedulerSnapshot
	subscribers []chan model.SchedulerSnapshot
	bufferSize  int
	closed      bool

	dropped atomic.Uint64
}

// NewHub creates a hub whose snapshots carry runID. bufferSize is the
// per-subscriber channel capacity.
func NewHub(runID string, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	return &Hub{
		runID:      runID,
		now:        time.Now,
		bufferSize: bufferSize,
	}
}

// Publish implements command.Publisher.
func (h *Hub) Publish(snap command.Snapshot) {
	view := model.SchedulerSnapshot{
		RunID:     h.runID,
		Tick:      snap.Tick,
		Disabled:  snap.Disabled,
		Running:   slices.Clone(snap.Running),
		Owners:    make([]model.Ownership, 0, len(snap.Owners)),
		Timestamp: h.now().UTC(),
	}
	if view.Running == nil {
		view.Running = []string{}
	}
	for _, o := range snap.Owners {
		view.Owners = append(view.Owners, model.Ownership{Subsystem: o.Subsystem, Command: o.Command})
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.latest = &view
	for _, ch := range h.subscribers {
		select {
		case ch <- view:
		default:
			h.dropped.Add(1)
		}
	}
}

// Latest returns the most recent snapshot, or false before the first tick.
func (h *Hub) Latest() (model.SchedulerSnapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return model.SchedulerSnapshot{}, false
	}
	return *h.latest, true
}

// Subscribe registers a subscriber. The channel is closed by the returned
// cancel function or by Close.
func (h *Hub) Subscribe() (<-chan model.SchedulerSnapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan model.SchedulerSnapshot, h.bufferSize)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subscribers = append(h.subscribers, ch)

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if i := slices.Index(h.subscribers, ch); i >= 0 {
			h.subscribers = slices.Delete(h.subscribers, i, i+1)
			close(ch)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns how many snapshots were not delivered to a full subscriber.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close closes every subscriber channel. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil
}
