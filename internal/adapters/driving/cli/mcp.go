package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/longdoc-cli/internal/adapters/driving/mcp"
	"github.com/custodia-labs/longdoc-cli/internal/core/services"
)

var mcpHTTPAddr string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the pipeline over the Model Context Protocol",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default the server communicates over stdio using JSON-RPC. Use
--http to serve streamable HTTP instead, which enables testing with
the MCP Inspector web UI and remote access.

Examples:
  # Stdio mode (default, for Claude Desktop)
  longdoc mcp

  # HTTP mode (for MCP Inspector, remote access)
  longdoc mcp --http :8080

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "longdoc": {
        "command": "/path/to/longdoc",
        "args": ["mcp"]
      }
    }
  }`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpHTTPAddr, "http", "", "serve streamable HTTP on this address instead of stdio")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	comps, err := buildComponents(ctx, "", false)
	if err != nil {
		return err
	}

	ports := &mcp.Ports{
		Pipeline: comps.pipelineService(),
		Query:    comps.queryService(),
		Inspect:  services.NewInspectService(comps.store, comps.embedder, comps.llm),
	}

	server, err := mcp.NewServer(ports, version)
	if err != nil {
		return err
	}

	if mcpHTTPAddr != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on %s\n", mcpHTTPAddr)
		return server.RunHTTP(ctx, mcpHTTPAddr)
	}

	return server.Run(ctx)
}
