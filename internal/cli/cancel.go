package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newCancelCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "cancel [command-name]",
		Short: "Cancel running commands on a running robot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if all {
				if _, err := client.Post(cmd.Context(), "/api/v1/scheduler/cancel-all", nil); err != nil {
					return fmt.Errorf("cancel all: %w", err)
				}
				fmt.Fprintln(out, "All commands canceled.")
				return nil
			}
			if len(args) == 0 {
				return errors.New("a command name or --all is required")
			}

			name := args[0]
			resp, err := client.Post(cmd.Context(), "/api/v1/scheduler/cancel/"+url.PathEscape(name), nil)
			if err != nil {
				return fmt.Errorf("cancel %s: %w", name, err)
			}
			var data struct {
				Canceled int `json:"canceled"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintf(out, "Canceled %d running %q command(s).\n", data.Canceled, name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Cancel every running command")
	return cmd
}
