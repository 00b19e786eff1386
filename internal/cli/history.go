package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/botsched/internal/config"
	"github.com/me/botsched/internal/store"
	"github.com/me/botsched/pkg/model"
)

const defaultHistoryDB = "botsched.db"

func newHistoryCmd() *cobra.Command {
	var (
		dbPath  string
		limit   int
		state   string
		prog    string
		verbose bool

		events  int
		command string
		event   string
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List past runs, or show the command events of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if event != "" && !model.EventKind(event).Valid() {
				return fmt.Errorf("invalid --event %q: must be initialize, finish or interrupt", event)
			}
			if !cmd.Flags().Changed("db") {
				cfg := config.DefaultRunConfig()
				if err := config.ApplyEnv(&cfg); err != nil {
					return err
				}
				if cfg.DBPath != "" {
					dbPath = cfg.DBPath
				}
			}

			st, err := store.NewSQLiteStore(dbPath, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			ctx := cmd.Context()
			if err := st.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			if len(args) == 1 {
				opts := model.ListOptions{Limit: events, Command: command, Event: model.EventKind(event)}
				return showRun(ctx, cmd.OutOrStdout(), st, args[0], opts, verbose)
			}
			opts := model.ListOptions{Limit: limit, State: state, Program: prog}
			return listRuns(ctx, cmd.OutOrStdout(), st, opts)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", defaultHistoryDB, "SQLite history database (or BOTSCHED_DB env)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum rows to show")
	cmd.Flags().StringVar(&state, "state", "", "Only runs in this state (RUNNING, COMPLETED, STOPPED, FAILED)")
	cmd.Flags().StringVar(&prog, "program", "", "Only runs of this program")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show event timestamps")
	cmd.Flags().IntVar(&events, "events", 200, "Maximum events to show for a run")
	cmd.Flags().StringVar(&command, "command", "", "Only events of this command")
	cmd.Flags().StringVar(&event, "event", "", "Only events of this kind (initialize, finish, interrupt)")
	return cmd
}

func listRuns(ctx context.Context, out io.Writer, st store.Store, opts model.ListOptions) error {
	runs, total, err := st.ListRuns(ctx, opts)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}

	fmt.Fprintf(out, "%-40s  %-10s  %-20s  %8s  %s\n", "ID", "STATE", "PROGRAM", "TICKS", "STARTED")
	fmt.Fprintf(out, "%-40s  %-10s  %-20s  %8s  %s\n", "--", "-----", "-------", "-----", "-------")
	for _, run := range runs {
		fmt.Fprintf(out, "%-40s  %-10s  %-20s  %8d  %s\n",
			run.ID, run.State, run.Program, run.Ticks, run.StartedAt.Local().Format(time.DateTime))
	}
	if len(runs) < total {
		fmt.Fprintf(out, "\n(%d of %d shown)\n", len(runs), total)
	}
	return nil
}

func showRun(ctx context.Context, out io.Writer, st store.Store, id string, opts model.ListOptions, verbose bool) error {
	run, err := st.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	if run == nil {
		return model.NewNotFoundError("run", id)
	}

	fmt.Fprintf(out, "Run: %s\n", run.ID)
	fmt.Fprintf(out, "  Program: %s\n", run.Program)
	fmt.Fprintf(out, "  State:   %s\n", run.State)
	fmt.Fprintf(out, "  Ticks:   %d\n", run.Ticks)
	fmt.Fprintf(out, "  Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.EndedAt != nil {
		fmt.Fprintf(out, "  Ended:   %s (%s)\n", run.EndedAt.Local().Format(time.DateTime),
			run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != "" {
		fmt.Fprintf(out, "  Error:   %s\n", run.Error)
	}

	events, total, err := st.ListEvents(ctx, id, opts)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}
	fmt.Fprintln(out, "  Events:")
	for _, ev := range events {
		line := fmt.Sprintf("    %6d  %-10s  %s", ev.Tick, ev.Event, ev.Command)
		if ev.Cause != "" {
			line += " (by " + ev.Cause + ")"
		}
		if verbose {
			line = ev.At.Local().Format("15:04:05.000") + line
		}
		fmt.Fprintln(out, line)
	}
	if len(events) < total {
		fmt.Fprintf(out, "  (%d of %d events shown)\n", len(events), total)
	}
	return nil
}
