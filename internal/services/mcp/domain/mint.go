package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vehiclegrid/dimo-mcp/internal/auth"
	apperrors "github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
	"github.com/vehiclegrid/dimo-mcp/internal/platform/timeouts"
)

// Minter submits an externally signed minting payload. Transaction
// construction and signing are outside the bridge; only delivery passes
// through here.
type Minter interface {
	SubmitMint(ctx context.Context, serviceToken, userDeviceID string, signedPayload json.RawMessage) (json.RawMessage, error)
}

// MintVehicleInput represents the MCP tool input for vehicle minting.
type MintVehicleInput struct {
	UserDeviceID  string `json:"user_device_id" jsonschema:"device identifier of the vehicle to mint (required)"`
	SignedPayload string `json:"signed_payload" jsonschema:"externally signed minting payload as JSON (required)"`
}

// MintVehicleResult represents the MCP tool output for vehicle minting.
type MintVehicleResult struct {
	Payload string `json:"payload" jsonschema:"pretty-printed upstream response, unmodified"`
}

// MintVehicleTool defines the MCP tool schema for vehicle minting.
func MintVehicleTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "mint_vehicle",
		Description: "Submits a signed vehicle minting payload. Requires login; the payload must already be signed by the external transaction signer.",
	}
}

// MintVehicleHandler forwards a signed mint payload. Minting has no vehicle
// token id yet, so the gate is reduced to its session check.
func MintVehicleHandler(sessions *auth.SessionStore, credentials ServiceTokenSource, minter Minter) mcp.ToolHandlerFor[MintVehicleInput, MintVehicleResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MintVehicleInput) (*mcp.CallToolResult, MintVehicleResult, error) {
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, MintVehicleResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		meta := ToolCallMetadata{InvocationID: invocationID}

		if strings.TrimSpace(input.UserDeviceID) == "" {
			return nil, MintVehicleResult{}, fmt.Errorf("user_device_id is required")
		}
		if !json.Valid([]byte(input.SignedPayload)) {
			return nil, MintVehicleResult{}, fmt.Errorf("signed_payload must be valid JSON")
		}

		if !sessions.IsAttached() {
			denied := apperrors.New(apperrors.CodeAuthNotLoggedIn, "not logged in, please login")
			return DenialResult(meta, denied), MintVehicleResult{}, nil
		}
		serviceToken, ok := credentials.Token()
		if !ok {
			denied := apperrors.New(apperrors.CodeAuthNotConfigured,
				"service is not authenticated; configure client id, domain, and private key")
			return DenialResult(meta, denied), MintVehicleResult{}, nil
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.UpstreamCall)
		defer cancel()

		payload, err := minter.SubmitMint(runCtx, serviceToken.AccessToken, input.UserDeviceID, json.RawMessage(input.SignedPayload))
		if err != nil {
			return nil, MintVehicleResult{}, fmt.Errorf("submit mint: %w", err)
		}
		return CallToolResultWithMetadata(meta), MintVehicleResult{Payload: prettyJSON(payload)}, nil
	}
}
