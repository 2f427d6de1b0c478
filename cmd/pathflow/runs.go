package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/pathflow/internal/cli"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List persisted runs or show one",
	Long:  `Reads the configured run store. Only the file and redis drivers keep runs across invocations.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, _, err := loadApp(cmd, true, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := context.Background()
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			ids, err := app.Controller.ListRuns(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		}

		result, err := app.Controller.LoadRun(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		cli.PrintResult(out, result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().Bool("json", false, "Print the run as JSON")
}
