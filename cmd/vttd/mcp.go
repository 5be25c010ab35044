package main

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/tablekeep/vtt/internal/config"
	"github.com/tablekeep/vtt/internal/mcp"
	"github.com/tablekeep/vtt/pkg/core"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve read-only scene tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE:  runMCP,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	backend, err := openStorage(config.GetStorageConfig())
	if err != nil {
		return err
	}
	defer backend.Close()

	// mcp.role caps what callers may see; GM views need an explicit opt in
	role := core.RoleFromCampaign(config.GetString("mcp.role"))
	Logger.Info("Serving MCP over stdio", "role", role.String())
	server := mcp.NewServer(backend, config.GetSyncConfig().ToolKey, role, version)
	return server.Run(ctx, &sdk.StdioTransport{})
}
