// Package mcp parses bridge configuration and runs the MCP service.
package mcp

import (
	"context"
	"errors"
	"flag"
	"log"
	"time"

	mcpapp "github.com/vehiclegrid/dimo-mcp/internal/app/mcp"
	"github.com/vehiclegrid/dimo-mcp/internal/auth"
	apperrors "github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
	"github.com/vehiclegrid/dimo-mcp/internal/platform/otel"
)

// ParseConfig parses environment and flags into bridge settings.
//
// A missing client identifier is logged, not fatal: the bridge keeps
// serving public identity tools and reports the degraded state on every
// vehicle-scoped call.
func ParseConfig(fs *flag.FlagSet, args []string) (auth.Settings, error) {
	settings, err := auth.LoadSettings()
	if err != nil {
		var configErr *apperrors.Error
		if !errors.As(err, &configErr) || configErr.Code != apperrors.CodeConfigMissingClientID {
			return auth.Settings{}, err
		}
		log.Printf("config: %v; vehicle-scoped tools will be denied until DIMO_CLIENT_ID is set", err)
	}

	fs.StringVar(&settings.CallbackAddr, "callback-addr", settings.CallbackAddr, "local address for the authorization callback listener")
	fs.BoolVar(&settings.FleetMode, "fleet-mode", settings.FleetMode, "skip per-vehicle ownership checks")
	if err := fs.Parse(args); err != nil {
		return auth.Settings{}, err
	}
	return settings, nil
}

// Run starts the MCP bridge.
func Run(ctx context.Context, settings auth.Settings) error {
	shutdown, err := otel.Setup(ctx, "mcp")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	return mcpapp.Run(ctx, settings)
}
