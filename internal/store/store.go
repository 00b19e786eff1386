package store

import (
	"context"
	"time"

	"github.com/me/botsched/pkg/model"
)

// Store defines the persistence layer for program runs and their command
// lifecycle history.
type Store interface {
	// Run records
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	UpdateRunTicks(ctx context.Context, id string, ticks uint64) error
	EndRun(ctx context.Context, id string, state model.RunState, ticks uint64, errMsg string, at time.Time) error

	// Command events
	AppendEvents(ctx context.Context, events []model.CommandEvent) error
	ListEvents(ctx context.Context, runID string, opts model.ListOptions) ([]*model.CommandEvent, int, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
