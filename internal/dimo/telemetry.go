package dimo

import (
	"context"
	"encoding/json"
	"fmt"
)

// Telemetry is the client for the authenticated telemetry GraphQL API.
// Every call carries a vehicle-scoped bearer token obtained through the
// token cache.
type Telemetry struct {
	client *GraphQLClient
}

// NewTelemetry creates a telemetry API client.
func NewTelemetry(endpoint string, headers map[string]string) *Telemetry {
	return &Telemetry{client: NewGraphQLClient(endpoint, headers)}
}

// Query executes a raw GraphQL query with the given vehicle token.
func (t *Telemetry) Query(ctx context.Context, vehicleToken, query string, variables map[string]any) (*GraphQLResponse, error) {
	return t.client.Query(ctx, query, variables, vehicleToken)
}

// Schema runs the introspection query with the given vehicle token.
func (t *Telemetry) Schema(ctx context.Context, vehicleToken string) (*GraphQLResponse, error) {
	return t.client.Schema(ctx, vehicleToken)
}

const vinQuery = `query VehicleVIN($tokenId: Int!) {
  vinVCLatest(tokenId: $tokenId) {
    vin
    recordedAt
  }
}`

// VIN returns the vehicle's latest VIN credential. Requires the VIN
// credential privilege on the vehicle token.
func (t *Telemetry) VIN(ctx context.Context, vehicleToken string, vehicleID int64) (string, error) {
	resp, err := t.client.Query(ctx, vinQuery, map[string]any{"tokenId": vehicleID}, vehicleToken)
	if err != nil {
		return "", err
	}
	if len(resp.Errors) > 0 {
		return "", fmt.Errorf("vin lookup: %s", resp.Errors[0].Message)
	}

	var payload struct {
		VinVCLatest struct {
			Vin string `json:"vin"`
		} `json:"vinVCLatest"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return "", fmt.Errorf("decode vin: %w", err)
	}
	if payload.VinVCLatest.Vin == "" {
		return "", fmt.Errorf("no VIN credential recorded for vehicle %d", vehicleID)
	}
	return payload.VinVCLatest.Vin, nil
}
