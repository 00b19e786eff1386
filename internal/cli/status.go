package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/botsched/pkg/model"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the scheduler state of a running robot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client.Get(cmd.Context(), "/api/v1/scheduler")
			if err != nil {
				return fmt.Errorf("get scheduler: %w", err)
			}

			var snap model.SchedulerSnapshot
			if err := json.Unmarshal(resp.Data, &snap); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:      %s\n", snap.RunID)
			fmt.Fprintf(out, "Tick:     %d\n", snap.Tick)
			fmt.Fprintf(out, "Disabled: %t\n", snap.Disabled)
			if len(snap.Running) == 0 {
				fmt.Fprintf(out, "Running:  (none)\n")
			} else {
				fmt.Fprintf(out, "Running:  %s\n", strings.Join(snap.Running, ", "))
			}
			if len(snap.Owners) > 0 {
				fmt.Fprintln(out, "Owners:")
				for _, o := range snap.Owners {
					fmt.Fprintf(out, "  %-16s %s\n", o.Subsystem, o.Command)
				}
			}
			return nil
		},
	}
}
