package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/botsched/pkg/model"
)

func newStationCmd() *cobra.Command {
	var (
		enable  bool
		disable bool
		press   []string
		release []string
	)

	cmd := &cobra.Command{
		Use:   "station",
		Short: "Show or change the operator station of a running robot",
		Long: `Without flags, prints the station state. --enable/--disable set the
robot enable signal; --press/--release change named buttons. Other buttons
keep their state.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable && disable {
				return errors.New("--enable and --disable are mutually exclusive")
			}

			resp, err := client.Get(cmd.Context(), "/api/v1/station")
			if err != nil {
				return fmt.Errorf("get station: %w", err)
			}
			var st model.StationState
			if err := json.Unmarshal(resp.Data, &st); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			changed := enable || disable || len(press) > 0 || len(release) > 0
			if changed {
				if st.Buttons == nil {
					st.Buttons = map[string]bool{}
				}
				if enable {
					st.Enabled = true
				}
				if disable {
					st.Enabled = false
				}
				for _, b := range press {
					st.Buttons[b] = true
				}
				for _, b := range release {
					st.Buttons[b] = false
				}
				resp, err = client.Put(cmd.Context(), "/api/v1/station", st)
				if err != nil {
					return fmt.Errorf("update station: %w", err)
				}
				if err := json.Unmarshal(resp.Data, &st); err != nil {
					return fmt.Errorf("parse response: %w", err)
				}
			}

			printStation(cmd, st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&enable, "enable", false, "Enable the robot")
	cmd.Flags().BoolVar(&disable, "disable", false, "Disable the robot")
	cmd.Flags().StringSliceVar(&press, "press", nil, "Buttons to press")
	cmd.Flags().StringSliceVar(&release, "release", nil, "Buttons to release")
	return cmd
}

func printStation(cmd *cobra.Command, st model.StationState) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Enabled: %t\n", st.Enabled)

	var pressed []string
	for name, down := range st.Buttons {
		if down {
			pressed = append(pressed, name)
		}
	}
	slices.Sort(pressed)
	if len(pressed) == 0 {
		fmt.Fprintln(out, "Pressed: (none)")
		return
	}
	fmt.Fprintf(out, "Pressed: %s\n", strings.Join(pressed, ", "))
}
