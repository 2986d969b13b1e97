package domain

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vehiclegrid/dimo-mcp/internal/auth"
	"github.com/vehiclegrid/dimo-mcp/internal/dimo"
	"github.com/vehiclegrid/dimo-mcp/internal/platform/timeouts"
)

// CreateAttestationInput represents the MCP tool input for credential issuance.
type CreateAttestationInput struct {
	VehicleTokenID int64  `json:"vehicle_token_id" jsonschema:"vehicle token id (required)"`
	Type           string `json:"type" jsonschema:"attestation type: vin or pom (required)"`
}

// CreateAttestationResult represents the MCP tool output for credential issuance.
type CreateAttestationResult struct {
	Payload string `json:"payload" jsonschema:"pretty-printed upstream response, unmodified"`
}

// CreateAttestationTool defines the MCP tool schema for credential issuance.
func CreateAttestationTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "create_attestation",
		Description: "Issues a verifiable credential (VIN or proof-of-movement) for a vehicle. Requires login and ownership (or fleet mode).",
	}
}

// CreateAttestationHandler issues a credential after the gate and token
// exchange succeed with the VIN credential privilege.
func CreateAttestationHandler(gate Authorizer, tokens VehicleTokenSource, attestation *dimo.Attestation) mcp.ToolHandlerFor[CreateAttestationInput, CreateAttestationResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateAttestationInput) (*mcp.CallToolResult, CreateAttestationResult, error) {
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, CreateAttestationResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		meta := ToolCallMetadata{InvocationID: invocationID}

		kind, err := dimo.ParseAttestationKind(input.Type)
		if err != nil {
			return nil, CreateAttestationResult{}, err
		}
		if input.VehicleTokenID <= 0 {
			return nil, CreateAttestationResult{}, fmt.Errorf("vehicle_token_id is required")
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.UpstreamCall)
		defer cancel()

		token, err := authorizeVehicle(runCtx, gate, tokens, input.VehicleTokenID, auth.NewPrivilegeSet(auth.PrivilegeVINCredential))
		if err != nil {
			if IsDenial(err) {
				return DenialResult(meta, err), CreateAttestationResult{}, nil
			}
			return nil, CreateAttestationResult{}, err
		}

		payload, err := attestation.Create(runCtx, token.Token, input.VehicleTokenID, kind)
		if err != nil {
			return nil, CreateAttestationResult{}, fmt.Errorf("create attestation: %w", err)
		}
		return CallToolResultWithMetadata(meta), CreateAttestationResult{Payload: prettyJSON(payload)}, nil
	}
}
