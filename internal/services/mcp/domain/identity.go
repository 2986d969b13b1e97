package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vehiclegrid/dimo-mcp/internal/dimo"
	"github.com/vehiclegrid/dimo-mcp/internal/platform/timeouts"
)

// IdentityQueryInput represents the MCP tool input for a public identity query.
type IdentityQueryInput struct {
	Query     string         `json:"query" jsonschema:"GraphQL query to run against the public identity API (required)"`
	Variables map[string]any `json:"variables,omitempty" jsonschema:"optional GraphQL variables"`
}

// IdentityQueryResult represents the MCP tool output for an identity query.
type IdentityQueryResult struct {
	Payload string `json:"payload" jsonschema:"pretty-printed upstream response, unmodified"`
}

// IdentityQueryTool defines the MCP tool schema for identity queries.
func IdentityQueryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "identity_query",
		Description: "Runs a GraphQL query against the public vehicle identity API. No authentication or login required.",
	}
}

// IdentityQueryHandler executes a public identity query.
func IdentityQueryHandler(identity *dimo.Identity) mcp.ToolHandlerFor[IdentityQueryInput, IdentityQueryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input IdentityQueryInput) (*mcp.CallToolResult, IdentityQueryResult, error) {
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, IdentityQueryResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		meta := ToolCallMetadata{InvocationID: invocationID}

		if strings.TrimSpace(input.Query) == "" {
			return nil, IdentityQueryResult{}, fmt.Errorf("query is required")
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.UpstreamCall)
		defer cancel()

		resp, err := identity.Query(runCtx, input.Query, input.Variables)
		if err != nil {
			return nil, IdentityQueryResult{}, fmt.Errorf("identity query: %w", err)
		}
		payload, err := renderGraphQL(resp)
		if err != nil {
			return nil, IdentityQueryResult{}, err
		}
		return CallToolResultWithMetadata(meta), IdentityQueryResult{Payload: payload}, nil
	}
}

// SearchVehiclesInput represents the MCP tool input for vehicle search.
type SearchVehiclesInput struct {
	Owner string `json:"owner,omitempty" jsonschema:"optional on-chain owner address to filter by"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of vehicles to return (default 10)"`
}

// SearchVehiclesResult represents the MCP tool output for vehicle search.
type SearchVehiclesResult struct {
	Payload string `json:"payload" jsonschema:"pretty-printed upstream response, unmodified"`
}

// SearchVehiclesTool defines the MCP tool schema for vehicle search.
func SearchVehiclesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_vehicles",
		Description: "Lists vehicles registered on the network, optionally filtered by owner address. Public data, no login required.",
	}
}

// SearchVehiclesHandler executes a vehicle search.
func SearchVehiclesHandler(identity *dimo.Identity) mcp.ToolHandlerFor[SearchVehiclesInput, SearchVehiclesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SearchVehiclesInput) (*mcp.CallToolResult, SearchVehiclesResult, error) {
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, SearchVehiclesResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		meta := ToolCallMetadata{InvocationID: invocationID}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.UpstreamCall)
		defer cancel()

		resp, err := identity.SearchVehicles(runCtx, input.Owner, input.Limit)
		if err != nil {
			return nil, SearchVehiclesResult{}, fmt.Errorf("search vehicles: %w", err)
		}
		payload, err := renderGraphQL(resp)
		if err != nil {
			return nil, SearchVehiclesResult{}, err
		}
		return CallToolResultWithMetadata(meta), SearchVehiclesResult{Payload: payload}, nil
	}
}
