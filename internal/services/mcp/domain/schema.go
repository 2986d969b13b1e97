package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vehiclegrid/dimo-mcp/internal/auth"
	"github.com/vehiclegrid/dimo-mcp/internal/dimo"
	"github.com/vehiclegrid/dimo-mcp/internal/platform/timeouts"
)

// IntrospectSchemaInput represents the MCP tool input for schema introspection.
type IntrospectSchemaInput struct {
	API            string `json:"api" jsonschema:"which API to introspect: identity or telemetry (required)"`
	VehicleTokenID int64  `json:"vehicle_token_id,omitempty" jsonschema:"vehicle token id, required for the telemetry API"`
}

// IntrospectSchemaResult represents the MCP tool output for schema introspection.
type IntrospectSchemaResult struct {
	Payload string `json:"payload" jsonschema:"pretty-printed introspection response, unmodified"`
}

// IntrospectSchemaTool defines the MCP tool schema for schema introspection.
func IntrospectSchemaTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "introspect_schema",
		Description: "Fetches the GraphQL schema of the identity or telemetry API. Telemetry introspection requires login, ownership (or fleet mode), and a vehicle token id.",
	}
}

// IntrospectSchemaHandler runs the introspection query on the selected API.
func IntrospectSchemaHandler(gate Authorizer, tokens VehicleTokenSource, identity *dimo.Identity, telemetry *dimo.Telemetry) mcp.ToolHandlerFor[IntrospectSchemaInput, IntrospectSchemaResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input IntrospectSchemaInput) (*mcp.CallToolResult, IntrospectSchemaResult, error) {
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, IntrospectSchemaResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		meta := ToolCallMetadata{InvocationID: invocationID}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.UpstreamCall)
		defer cancel()

		switch strings.ToLower(strings.TrimSpace(input.API)) {
		case "identity":
			resp, err := identity.Schema(runCtx)
			if err != nil {
				return nil, IntrospectSchemaResult{}, fmt.Errorf("introspect identity schema: %w", err)
			}
			payload, err := renderGraphQL(resp)
			if err != nil {
				return nil, IntrospectSchemaResult{}, err
			}
			return CallToolResultWithMetadata(meta), IntrospectSchemaResult{Payload: payload}, nil

		case "telemetry":
			if input.VehicleTokenID <= 0 {
				return nil, IntrospectSchemaResult{}, fmt.Errorf("vehicle_token_id is required for telemetry introspection")
			}
			token, err := authorizeVehicle(runCtx, gate, tokens, input.VehicleTokenID, auth.NewPrivilegeSet(auth.PrivilegeNonLocationData))
			if err != nil {
				if IsDenial(err) {
					return DenialResult(meta, err), IntrospectSchemaResult{}, nil
				}
				return nil, IntrospectSchemaResult{}, err
			}
			resp, err := telemetry.Schema(runCtx, token.Token)
			if err != nil {
				return nil, IntrospectSchemaResult{}, fmt.Errorf("introspect telemetry schema: %w", err)
			}
			payload, err := renderGraphQL(resp)
			if err != nil {
				return nil, IntrospectSchemaResult{}, err
			}
			return CallToolResultWithMetadata(meta), IntrospectSchemaResult{Payload: payload}, nil

		default:
			return nil, IntrospectSchemaResult{}, fmt.Errorf("api must be identity or telemetry, got %q", input.API)
		}
	}
}
