package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/pathflow/internal/cli"
	"github.com/aretw0/pathflow/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:           "pathflow",
	Short:         "pathflow runs signal trees of actions with named output branches",
	Long:          `pathflow loads signal definitions from YAML or JSON files and runs them from the command line, over HTTP or as MCP tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./pathflow.yaml if present)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringSlice("signals", []string{"signals"}, "Signal files or directories")
	rootCmd.PersistentFlags().String("store", "memory", "Run store driver: memory, redis, file")
	rootCmd.PersistentFlags().String("tools", "tools.yaml", "Allow-list of commands for the exec action")
}

// loadConfig merges the config file, PATHFLOW_* env and the flags of cmd.
// extra maps further config keys to flags of cmd.
func loadConfig(cmd *cobra.Command, extra map[string]string) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	flags := map[string]*pflag.Flag{
		"log.level":     cmd.Flags().Lookup("log-level"),
		"signals.paths": cmd.Flags().Lookup("signals"),
		"store.driver":  cmd.Flags().Lookup("store"),
		"tools.path":    cmd.Flags().Lookup("tools"),
	}
	for key, name := range extra {
		flags[key] = cmd.Flags().Lookup(name)
	}
	return config.Load(path, flags)
}

// loadApp wires the controller for commands that run signals.
func loadApp(cmd *cobra.Command, quiet bool, extra map[string]string) (*cli.App, config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd, extra)
	if err != nil {
		return nil, cfg, nil, err
	}
	logger, err := cli.NewLogger(cfg.Log.Level, quiet)
	if err != nil {
		return nil, cfg, nil, err
	}
	app, err := cli.Build(cfg, logger)
	if err != nil {
		return nil, cfg, nil, err
	}
	return app, cfg, logger, nil
}
