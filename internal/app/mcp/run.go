// Package mcp boots the MCP bridge from loaded settings.
package mcp

import (
	"context"

	"github.com/vehiclegrid/dimo-mcp/internal/auth"
	"github.com/vehiclegrid/dimo-mcp/internal/services/mcp/service"
)

// Run starts the bridge with the given settings and blocks until the
// context ends.
func Run(ctx context.Context, settings auth.Settings) error {
	return service.Run(ctx, settings)
}
