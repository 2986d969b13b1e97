package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vehiclegrid/dimo-mcp/internal/auth"
	"github.com/vehiclegrid/dimo-mcp/internal/dimo"
	apperrors "github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
	"github.com/vehiclegrid/dimo-mcp/internal/platform/timeouts"
)

// ServiceTokenSource yields the process-wide service token when the bridge
// is authenticated at the service level.
type ServiceTokenSource interface {
	Token() (auth.ServiceToken, bool)
}

// DecodeVINInput represents the MCP tool input for VIN decoding.
type DecodeVINInput struct {
	VIN         string `json:"vin" jsonschema:"vehicle identification number to decode (required)"`
	CountryCode string `json:"country_code,omitempty" jsonschema:"three-letter country code, defaults to USA"`
}

// DecodeVINResult represents the MCP tool output for VIN decoding.
type DecodeVINResult struct {
	Payload string `json:"payload" jsonschema:"pretty-printed upstream response, unmodified"`
}

// DecodeVINTool defines the MCP tool schema for VIN decoding.
func DecodeVINTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "decode_vin",
		Description: "Decodes a VIN into its device definition (make, model, year). Uses the bridge's service credentials; no user login required.",
	}
}

// DecodeVINHandler executes a VIN decode using the service token.
func DecodeVINHandler(credentials ServiceTokenSource, devices *dimo.Devices) mcp.ToolHandlerFor[DecodeVINInput, DecodeVINResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DecodeVINInput) (*mcp.CallToolResult, DecodeVINResult, error) {
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, DecodeVINResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		meta := ToolCallMetadata{InvocationID: invocationID}

		if strings.TrimSpace(input.VIN) == "" {
			return nil, DecodeVINResult{}, fmt.Errorf("vin is required")
		}

		serviceToken, ok := credentials.Token()
		if !ok {
			denied := apperrors.New(apperrors.CodeAuthNotConfigured,
				"service is not authenticated; configure client id, domain, and private key")
			return DenialResult(meta, denied), DecodeVINResult{}, nil
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.UpstreamCall)
		defer cancel()

		payload, err := devices.DecodeVIN(runCtx, serviceToken.AccessToken, input.VIN, input.CountryCode)
		if err != nil {
			return nil, DecodeVINResult{}, fmt.Errorf("decode vin: %w", err)
		}
		return CallToolResultWithMetadata(meta), DecodeVINResult{Payload: prettyJSON(payload)}, nil
	}
}

// VehicleVINInput represents the MCP tool input for reading a vehicle's VIN.
type VehicleVINInput struct {
	VehicleTokenID int64 `json:"vehicle_token_id" jsonschema:"vehicle token id (required)"`
}

// VehicleVINResult represents the MCP tool output for reading a vehicle's VIN.
type VehicleVINResult struct {
	VIN string `json:"vin" jsonschema:"latest VIN recorded for the vehicle"`
}

// VehicleVINTool defines the MCP tool schema for reading a vehicle's VIN.
func VehicleVINTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "vehicle_vin",
		Description: "Returns the vehicle's VIN from its latest VIN credential. Requires login and ownership (or fleet mode).",
	}
}

// VehicleVINHandler reads a vehicle's VIN after the gate and token exchange
// succeed with the VIN credential privilege.
func VehicleVINHandler(gate Authorizer, tokens VehicleTokenSource, telemetry *dimo.Telemetry) mcp.ToolHandlerFor[VehicleVINInput, VehicleVINResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input VehicleVINInput) (*mcp.CallToolResult, VehicleVINResult, error) {
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, VehicleVINResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		meta := ToolCallMetadata{InvocationID: invocationID}

		if input.VehicleTokenID <= 0 {
			return nil, VehicleVINResult{}, fmt.Errorf("vehicle_token_id is required")
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.UpstreamCall)
		defer cancel()

		token, err := authorizeVehicle(runCtx, gate, tokens, input.VehicleTokenID, auth.NewPrivilegeSet(auth.PrivilegeVINCredential))
		if err != nil {
			if IsDenial(err) {
				return DenialResult(meta, err), VehicleVINResult{}, nil
			}
			return nil, VehicleVINResult{}, err
		}

		vin, err := telemetry.VIN(runCtx, token.Token, input.VehicleTokenID)
		if err != nil {
			return nil, VehicleVINResult{}, fmt.Errorf("read vin: %w", err)
		}
		return CallToolResultWithMetadata(meta), VehicleVINResult{VIN: vin}, nil
	}
}
