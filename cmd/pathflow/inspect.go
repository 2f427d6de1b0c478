package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/pathflow/internal/presentation/graph"
	"github.com/aretw0/pathflow/internal/presentation/tui"
	"github.com/aretw0/pathflow/pkg/domain"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [signal]",
	Short: "Describe the loaded signals",
	Long:  `Renders the signal trees as formatted markdown. Without arguments every signal is shown.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, _, err := loadApp(cmd, true, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		names := app.Controller.Signals()
		if len(args) == 1 {
			names = args
		}

		var docs []string
		for _, name := range names {
			sig, ok := app.Controller.Inspect(name)
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrUnknownSignal, name)
			}
			docs = append(docs, graph.Markdown(sig))
		}

		markdown := strings.Join(docs, "\n---\n\n")
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			fmt.Fprint(cmd.OutOrStdout(), markdown)
			return nil
		}
		out, err := tui.NewRenderer()(markdown)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Bool("raw", false, "Print markdown without rendering")
}
