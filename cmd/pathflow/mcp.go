package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aretw0/pathflow/internal/cli"
	"github.com/aretw0/pathflow/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the loaded signals as MCP tools (list_signals, run_signal, get_graph).
This allows AI agents to trigger signals and inspect their trees.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")

		app, cfg, logger, err := loadApp(cmd, false, map[string]string{"server.addr": "addr"})
		if err != nil {
			return err
		}
		defer app.Close()

		srv := mcp.NewServer(app.Controller, logger)

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("Starting pathflow MCP Server (Stdio)...")
			return srv.ServeStdio()
		case "sse":
			logger.Info("Starting pathflow MCP Server (SSE)", "addr", cfg.Server.Addr)
			sigCtx := cli.NewSignalContext(cmd.Context())
			defer sigCtx.Cancel()
			if err := srv.ServeSSE(sigCtx, cfg.Server.Addr); err != nil {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8080", "Address to listen on (only for SSE)")
}
