package cmd

import (
	"github.com/huangsam/tnrpipe/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the tnrpipe MCP server",
	Long: `Launch an MCP server over stdio so AI agents can extract intervals, inspect
split documents, package datasets and read the run ledger.`,
	// Stdio carries the protocol, so nothing else may print to stdout.
	PreRunE: sharedSetup,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(cmd.Context(), cfg, runStore, version)
	},
}
