package main

import (
	"context"
	"os"

	"github.com/aretw0/pathflow/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <signal> [payload]",
	Short: "Trigger a signal and print its result",
	Long: `Runs one signal to completion and prints the trace, payload and context.
The payload is decoded as JSON when possible. Use '-' (or pipe Stdin) to read it from Stdin.
With --watch the signal files are reloaded and the signal runs again on every change.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")
		watch, _ := cmd.Flags().GetBool("watch")
		runID, _ := cmd.Flags().GetString("run-id")
		rawContext, _ := cmd.Flags().GetString("context")

		rawPayload := ""
		if len(args) > 1 {
			rawPayload = args[1]
		}
		payload, err := cli.ReadPayload(rawPayload, os.Stdin)
		if err != nil {
			return err
		}
		seed, err := cli.ParseContext(rawContext)
		if err != nil {
			return err
		}

		app, cfg, logger, err := loadApp(cmd, quiet || jsonMode, nil)
		if err != nil {
			return err
		}
		defer app.Close()

		opts := cli.RunOptions{
			Signal:  args[0],
			Payload: payload,
			Context: seed,
			RunID:   runID,
			JSON:    jsonMode,
			Quiet:   quiet,
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		if watch {
			return cli.RunWatch(sigCtx, app, opts, cfg.Signals.Paths, cmd.OutOrStdout(), logger)
		}
		return cli.Run(sigCtx, app, opts, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("context", "", "Initial context as JSON object")
	runCmd.Flags().String("run-id", "", "Run identifier (generated when empty)")
	runCmd.Flags().Bool("json", false, "Print the result as JSON")
	runCmd.Flags().BoolP("quiet", "q", false, "Only report errors")
	runCmd.Flags().BoolP("watch", "w", false, "Re-run on signal file changes")
}
