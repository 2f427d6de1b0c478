package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the signal files for consistency",
	Long: `Loads every signal and checks each tree against the action declarations.
Branches for undeclared outputs are errors. Declared outputs without a branch are
reported as warnings, or as errors with --strict.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, _, err := loadApp(cmd, true, map[string]string{"strict_wiring": "strict"})
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		defer app.Close()

		out := cmd.OutOrStdout()
		names := app.Controller.Signals()
		for _, name := range names {
			for _, w := range app.Controller.Warnings(name) {
				fmt.Fprintf(out, "warning: signal %s, action %s: output %q has no branch\n", name, w.Action, w.Output)
			}
		}
		fmt.Fprintf(out, "%d signal(s) valid! ✅\n", len(names))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("strict", false, "Treat unwired outputs as errors")
}
