package main

import (
	"context"
	"fmt"

	"github.com/aretw0/pathflow/internal/presentation/graph"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <signal>",
	Short: "Export the signal tree visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the signal tree. With --run-id the path taken by a persisted run is highlighted.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, _, err := loadApp(cmd, true, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		sig, ok := app.Controller.Inspect(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnknownSignal, args[0])
		}

		var overlay *graph.Overlay
		if runID, _ := cmd.Flags().GetString("run-id"); runID != "" {
			result, err := app.Controller.LoadRun(context.Background(), runID)
			if err != nil {
				return err
			}
			overlay = &graph.Overlay{Trace: result.Trace, Failed: result.Status == domain.StatusFailed}
		}

		// Generate and print Mermaid graph
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(sig, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("run-id", "", "Highlight the trace of a persisted run")
}
