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

// defaultTelemetryPrivileges covers the common telemetry queries: historical
// non-location data plus current and historical location.
var defaultTelemetryPrivileges = auth.NewPrivilegeSet(
	auth.PrivilegeNonLocationData,
	auth.PrivilegeCurrentLocation,
	auth.PrivilegeAllTimeLocation,
)

// TelemetryQueryInput represents the MCP tool input for a telemetry query.
type TelemetryQueryInput struct {
	VehicleTokenID int64          `json:"vehicle_token_id" jsonschema:"vehicle token id the query concerns (required)"`
	Query          string         `json:"query" jsonschema:"GraphQL query to run against the telemetry API (required)"`
	Variables      map[string]any `json:"variables,omitempty" jsonschema:"optional GraphQL variables"`
}

// TelemetryQueryResult represents the MCP tool output for a telemetry query.
type TelemetryQueryResult struct {
	Payload string `json:"payload" jsonschema:"pretty-printed upstream response, unmodified"`
}

// TelemetryQueryTool defines the MCP tool schema for telemetry queries.
func TelemetryQueryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "telemetry_query",
		Description: "Runs a GraphQL query against the authenticated vehicle telemetry API. Requires login and vehicle ownership (or fleet mode).",
	}
}

// TelemetryQueryHandler executes an authenticated telemetry query after the
// ownership gate and token exchange succeed.
func TelemetryQueryHandler(gate Authorizer, tokens VehicleTokenSource, telemetry *dimo.Telemetry) mcp.ToolHandlerFor[TelemetryQueryInput, TelemetryQueryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TelemetryQueryInput) (*mcp.CallToolResult, TelemetryQueryResult, error) {
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, TelemetryQueryResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		meta := ToolCallMetadata{InvocationID: invocationID}

		if input.VehicleTokenID <= 0 {
			return nil, TelemetryQueryResult{}, fmt.Errorf("vehicle_token_id is required")
		}
		if strings.TrimSpace(input.Query) == "" {
			return nil, TelemetryQueryResult{}, fmt.Errorf("query is required")
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.UpstreamCall)
		defer cancel()

		token, err := authorizeVehicle(runCtx, gate, tokens, input.VehicleTokenID, defaultTelemetryPrivileges)
		if err != nil {
			if IsDenial(err) {
				return DenialResult(meta, err), TelemetryQueryResult{}, nil
			}
			return nil, TelemetryQueryResult{}, err
		}

		resp, err := telemetry.Query(runCtx, token.Token, input.Query, input.Variables)
		if err != nil {
			return nil, TelemetryQueryResult{}, fmt.Errorf("telemetry query: %w", err)
		}
		payload, err := renderGraphQL(resp)
		if err != nil {
			return nil, TelemetryQueryResult{}, err
		}
		return CallToolResultWithMetadata(meta), TelemetryQueryResult{Payload: payload}, nil
	}
}
