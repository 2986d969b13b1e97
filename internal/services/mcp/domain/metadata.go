package domain

import (
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// invocationIDKey is the result metadata key carrying the tool invocation id.
const invocationIDKey = "invocation-id"

// ToolCallMetadata carries correlation identifiers for MCP tool calls.
type ToolCallMetadata struct {
	InvocationID string
}

// NewInvocationID generates an invocation identifier for a tool call.
func NewInvocationID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// CallToolResultWithMetadata builds a tool result with correlation metadata.
func CallToolResultWithMetadata(meta ToolCallMetadata) *mcp.CallToolResult {
	result := &mcp.CallToolResult{}
	if meta.InvocationID != "" {
		result.Meta = map[string]any{invocationIDKey: meta.InvocationID}
	}
	return result
}
