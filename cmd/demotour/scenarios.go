package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/v0xg/demotour/internal/scenario"
)

func newScenariosCmd() *cobra.Command {
	var showSteps bool

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List the tours that can be played",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return listScenarios(cmd.OutOrStdout(), a.registry.List(), a.cfg.Playback.DefaultScenario, showSteps)
		},
	}

	cmd.Flags().BoolVar(&showSteps, "steps", false, "Show every step")
	return cmd
}

func listScenarios(w io.Writer, scenarios []*scenario.Scenario, defaultID string, showSteps bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTEPS\tNAME")
	for _, s := range scenarios {
		id := s.ID
		if id == defaultID {
			id += " (default)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", id, s.Len(), s.Name)
		if !showSteps {
			continue
		}
		for i, step := range s.Steps {
			target := step.TargetSelector
			if step.Action == scenario.ActionNavigate {
				target = step.Route
			}
			fmt.Fprintf(tw, "  [%d] %s\t%s\t%s\n", i+1, step.ID, step.Action, target)
		}
	}
	return tw.Flush()
}
