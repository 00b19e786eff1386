package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/botsched/internal/program"
	"github.com/me/botsched/pkg/model"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <program.yaml>",
		Short: "Check a robot program without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			p, err := program.Load(args[0])
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) && len(apiErr.Details) > 0 {
					fmt.Fprintf(out, "%s: %d problem(s)\n", args[0], len(apiErr.Details))
					for _, d := range apiErr.Details {
						fmt.Fprintf(out, "  %s: %s\n", d.Path, d.Message)
					}
					return fmt.Errorf("program %s is invalid", args[0])
				}
				return err
			}

			fmt.Fprintf(out, "%s: ok (%d subsystems, %d commands, %d bindings)\n",
				p.Name, len(p.Subsystems), len(p.Commands), len(p.Bindings))
			return nil
		},
	}
}
