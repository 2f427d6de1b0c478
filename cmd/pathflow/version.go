package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/pathflow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of pathflow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pathflow version %s\n", strings.TrimSpace(pathflow.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
