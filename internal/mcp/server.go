// Package mcp exposes read-only scene projections as MCP tools.
package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tablekeep/vtt/internal/storage"
	"github.com/tablekeep/vtt/pkg/core"
)

type Server struct {
	store   storage.Backend
	toolKey string
	// role is the most a caller may see; requests can only narrow it.
	role core.Role
	mcp  *sdk.Server
}

func NewServer(store storage.Backend, toolKey string, role core.Role, version string) *Server {
	s := &Server{
		store:   store,
		toolKey: toolKey,
		role:    role,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "vttd",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
