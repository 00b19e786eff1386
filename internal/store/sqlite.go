package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/me/botsched/pkg/model"

	_ "modernc.org/sqlite"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// Each connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	state := run.State
	if state == "" {
		state = model.RunStateRunning
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, program, state, ticks, error, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Program, string(state), run.Ticks, run.Error,
		run.StartedAt.Format(time.RFC3339Nano), formatTime(run.EndedAt),
	)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, program, state, ticks, error, started_at, ended_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var whereClauses []string
	var countArgs []any
	if opts.State != "" {
		whereClauses = append(whereClauses, "state = ?")
		countArgs = append(countArgs, opts.State)
	}
	if opts.Program != "" {
		whereClauses = append(whereClauses, "program = ?")
		countArgs = append(countArgs, opts.Program)
	}
	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT id, program, state, ticks, error, started_at, ended_at
		FROM runs` + whereSQL + ` ORDER BY started_at DESC LIMIT ? OFFSET ?`
	listArgs := append(countArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

func (s *SQLiteStore) UpdateRunTicks(ctx context.Context, id string, ticks uint64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE runs SET ticks=? WHERE id=?`, ticks, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// EndRun moves a run to a terminal state. The transition is checked against
// model.ValidRunTransitions.
func (s *SQLiteStore) EndRun(ctx context.Context, id string, state model.RunState, ticks uint64, errMsg string, at time.Time) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", id, "state", state)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT state FROM runs WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return err
	}
	if !model.RunState(current).CanTransitionTo(state) {
		return &model.InvalidTransitionError{Entity: "run", ID: id, From: current, To: string(state)}
	}

	ended := at.UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET state=?, ticks=?, error=?, ended_at=? WHERE id=?`,
		string(state), ticks, errMsg, formatTime(&ended), id,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Command events ---

// AppendEvents inserts a batch of events in one transaction and fills in
// their IDs.
func (s *SQLiteStore) AppendEvents(ctx context.Context, events []model.CommandEvent) error {
	if len(events) == 0 {
		return nil
	}
	s.logger.Debug("sql", "op", "insert", "table", "command_events", "count", len(events))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO command_events (run_id, tick, command, event, cause, at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		ev := &events[i]
		result, err := stmt.ExecContext(ctx,
			ev.RunID, ev.Tick, ev.Command, string(ev.Event), ev.Cause, ev.At.Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("insert event %s/%d: %w", ev.Command, ev.Tick, err)
		}
		ev.ID, _ = result.LastInsertId()
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListEvents(ctx context.Context, runID string, opts model.ListOptions) ([]*model.CommandEvent, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "command_events", "run_id", runID, "limit", opts.Limit, "offset", opts.Offset)
	opts.ClampTo(model.MaxEventLimit)

	whereClauses := []string{"run_id = ?"}
	countArgs := []any{runID}
	if opts.Command != "" {
		whereClauses = append(whereClauses, "command = ?")
		countArgs = append(countArgs, opts.Command)
	}
	if opts.Event != "" {
		whereClauses = append(whereClauses, "event = ?")
		countArgs = append(countArgs, string(opts.Event))
	}
	if opts.FromTick > 0 {
		whereClauses = append(whereClauses, "tick >= ?")
		countArgs = append(countArgs, opts.FromTick)
	}
	whereSQL := " WHERE " + strings.Join(whereClauses, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM command_events`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT id, run_id, tick, command, event, cause, at
		FROM command_events` + whereSQL + ` ORDER BY id ASC LIMIT ? OFFSET ?`
	listArgs := append(countArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*model.CommandEvent
	for rows.Next() {
		var ev model.CommandEvent
		var event, at string
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Tick, &ev.Command, &event, &ev.Cause, &at); err != nil {
			return nil, 0, err
		}
		ev.Event = model.EventKind(event)
		ev.At, _ = time.Parse(time.RFC3339Nano, at)
		events = append(events, &ev)
	}
	return events, total, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.Run, error) {
	var run model.Run
	var state, startedAt string
	var endedAt *string

	if err := row.Scan(&run.ID, &run.Program, &state, &run.Ticks, &run.Error, &startedAt, &endedAt); err != nil {
		return nil, err
	}
	run.State = model.RunState(state)
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if endedAt != nil {
		t, _ := time.Parse(time.RFC3339Nano, *endedAt)
		run.EndedAt = &t
	}
	return &run, nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339Nano)
	return &s
}
