package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vehiclegrid/dimo-mcp/internal/auth"
	"github.com/vehiclegrid/dimo-mcp/internal/dimo"
)

// Authorizer is the ownership/fleet gate every vehicle-scoped tool must
// pass before a token exchange is attempted.
type Authorizer interface {
	Authorize(ctx context.Context, vehicleID int64) error
}

// VehicleTokenSource yields vehicle-scoped tokens covering a privilege set.
type VehicleTokenSource interface {
	EnsureVehicleToken(ctx context.Context, vehicleID int64, required auth.PrivilegeSet) (auth.VehicleToken, error)
}

// authorizeVehicle runs the mandatory gate-then-exchange sequence for one
// vehicle. The two checks are independent: passing the gate does not imply
// a token exists, and a cached token does not imply current ownership.
func authorizeVehicle(ctx context.Context, gate Authorizer, tokens VehicleTokenSource, vehicleID int64, required auth.PrivilegeSet) (auth.VehicleToken, error) {
	if err := gate.Authorize(ctx, vehicleID); err != nil {
		return auth.VehicleToken{}, err
	}
	return tokens.EnsureVehicleToken(ctx, vehicleID, required)
}

// prettyJSON renders an upstream payload for the caller without business
// transformation.
func prettyJSON(raw json.RawMessage) string {
	var buf any
	if err := json.Unmarshal(raw, &buf); err != nil {
		return string(raw)
	}
	pretty, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(pretty)
}

// renderGraphQL pretty-prints a GraphQL envelope verbatim, appending the
// schema-mismatch hint when the upstream errors warrant one.
func renderGraphQL(resp *dimo.GraphQLResponse) (string, error) {
	pretty, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render response: %w", err)
	}
	out := string(pretty)
	if hint := SchemaHint(resp.Errors); hint != "" {
		out += "\n\n" + hint
	}
	return out, nil
}
