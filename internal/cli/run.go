package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/me/botsched/internal/config"
	"github.com/me/botsched/internal/driver"
	"github.com/me/botsched/internal/program"
	"github.com/me/botsched/internal/server"
	"github.com/me/botsched/internal/station"
	"github.com/me/botsched/internal/store"
	"github.com/me/botsched/internal/telemetry"
	"github.com/me/botsched/pkg/command"
	"github.com/me/botsched/pkg/model"
)

func newRunCmd() *cobra.Command {
	cfg := config.DefaultRunConfig()

	cmd := &cobra.Command{
		Use:   "run <program.yaml>",
		Short: "Run a robot program",
		Long: `Builds the program onto a command scheduler and drives it once per
period until interrupted, until --ticks ticks have run, or until a command
callback faults. Print commands write to stdout; logs go to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Environment first, then explicit flags.
			flagged := cfg
			if err := config.ApplyEnv(&cfg); err != nil {
				return err
			}
			overrideChanged(cmd, &cfg, flagged)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runProgram(ctx, args[0], cfg, cmd.OutOrStdout(), logger)
		},
	}

	f := cmd.Flags()
	f.DurationVar(&cfg.Period, "period", cfg.Period, "Control-cycle period")
	f.Uint64Var(&cfg.MaxTicks, "ticks", cfg.MaxTicks, "Stop after this many ticks (0 = until interrupted)")
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP API listen address, e.g. :8090 (empty disables the API)")
	f.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite run history database (empty disables history)")
	f.StringVar(&cfg.InputsPath, "inputs", cfg.InputsPath, "Station inputs YAML, reloaded when it changes")
	f.BoolVar(&cfg.Enabled, "enabled", cfg.Enabled, "Start with the robot enabled")
	return cmd
}

// overrideChanged restores the flag values the user set explicitly after the
// environment overlay.
func overrideChanged(cmd *cobra.Command, cfg *config.RunConfig, flagged config.RunConfig) {
	f := cmd.Flags()
	if f.Changed("period") {
		cfg.Period = flagged.Period
	}
	if f.Changed("ticks") {
		cfg.MaxTicks = flagged.MaxTicks
	}
	if f.Changed("addr") {
		cfg.Addr = flagged.Addr
	}
	if f.Changed("db") {
		cfg.DBPath = flagged.DBPath
	}
	if f.Changed("inputs") {
		cfg.InputsPath = flagged.InputsPath
	}
	if f.Changed("enabled") {
		cfg.Enabled = flagged.Enabled
	}
}

// runProgram loads the program at path and drives it until ctx is cancelled,
// the tick limit is reached or a command faults.
func runProgram(ctx context.Context, path string, cfg config.RunConfig, out io.Writer, logger *slog.Logger) error {
	prog, err := program.Load(path)
	if err != nil {
		return err
	}

	st := station.New(cfg.Enabled)
	if cfg.InputsPath != "" {
		if err := st.LoadFile(cfg.InputsPath); err != nil {
			return err
		}
	}

	runID := store.NewRunID()
	logger = logger.With("run_id", runID)

	var db *store.SQLiteStore
	if cfg.DBPath != "" {
		db, err = store.NewSQLiteStore(cfg.DBPath, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	hub := telemetry.NewHub(runID, 16)
	opts := []command.Option{command.WithLogger(logger), command.WithPublisher(hub)}
	var rec *telemetry.Recorder
	if db != nil {
		rec = telemetry.NewRecorder(runID, db, 0, logger)
		opts = append(opts, command.WithPublisher(rec))
	}
	sched := command.NewScheduler(opts...)
	if rec != nil {
		rec.Attach(sched)
	}

	robot, err := program.Build(prog, sched, program.Options{Inputs: st, Out: out, Logger: logger})
	if err != nil {
		return err
	}
	if err := robot.ScheduleAutonomous(); err != nil {
		return fmt.Errorf("schedule autonomous: %w", err)
	}

	// Recorded only once the program is built; the events of the autonomous
	// schedule are flushed with the first tick.
	if db != nil {
		if err := db.CreateRun(ctx, &model.Run{
			ID:        runID,
			Program:   prog.Name,
			State:     model.RunStateRunning,
			StartedAt: time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("create run: %w", err)
		}
	}

	loop := driver.NewLoop(sched, st, driver.Config{Period: cfg.Period, MaxTicks: cfg.MaxTicks}, logger)

	g, gctx := errgroup.WithContext(ctx)
	// Cancelled when the robot loop ends, so the API and watcher follow it.
	auxCtx, stopAux := context.WithCancel(gctx)
	defer stopAux()

	g.Go(func() error {
		err := loop.Start(gctx)
		if rec != nil {
			rec.Close()
		}
		hub.Close()
		stopAux()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if rec != nil {
		g.Go(func() error {
			return rec.Run(context.WithoutCancel(ctx))
		})
	}
	if cfg.InputsPath != "" {
		g.Go(func() error {
			return st.Watch(auxCtx, cfg.InputsPath, logger)
		})
	}
	if cfg.Addr != "" {
		srv := server.New(logger,
			server.WithSnapshots(hub),
			server.WithController(loop),
			server.WithStation(st),
			server.WithProgram(prog.Name),
			withStore(db),
		)
		g.Go(func() error {
			return srv.ListenAndServe(auxCtx, cfg.Addr)
		})
	}

	runErr := g.Wait()
	ticks := sched.Tick()

	state := model.RunStateCompleted
	switch {
	case runErr != nil:
		state = model.RunStateFailed
	case ctx.Err() != nil:
		state = model.RunStateStopped
	}
	logger.Info("run finished", "program", prog.Name, "state", state, "ticks", ticks, "overruns", loop.Overruns())

	if db != nil {
		errMsg := ""
		if runErr != nil {
			errMsg = runErr.Error()
		}
		if err := db.EndRun(context.WithoutCancel(ctx), runID, state, ticks, errMsg, time.Now()); err != nil {
			logger.Error("record run end", "error", err)
		}
	}
	return runErr
}

// withStore avoids handing the server a typed nil store.
func withStore(db *store.SQLiteStore) server.Option {
	if db == nil {
		return func(*server.Server) {}
	}
	return server.WithStore(db)
}
