package dimo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Identity is the client for the public identity GraphQL API. No
// authentication is required; identity queries keep working even when the
// bridge has no service token.
type Identity struct {
	client *GraphQLClient
}

// NewIdentity creates an identity API client.
func NewIdentity(endpoint string, headers map[string]string) *Identity {
	return &Identity{client: NewGraphQLClient(endpoint, headers)}
}

// Query executes a raw GraphQL query against the identity API.
func (i *Identity) Query(ctx context.Context, query string, variables map[string]any) (*GraphQLResponse, error) {
	return i.client.Query(ctx, query, variables, "")
}

// Schema runs the introspection query against the identity API.
func (i *Identity) Schema(ctx context.Context) (*GraphQLResponse, error) {
	return i.client.Schema(ctx, "")
}

const vehicleOwnerQuery = `query VehicleOwner($tokenId: Int!) {
  vehicle(tokenId: $tokenId) {
    owner
  }
}`

// VehicleOwner returns the vehicle's current on-chain owner address. It
// implements the ownership lookup consumed by the authorization gate.
func (i *Identity) VehicleOwner(ctx context.Context, vehicleID int64) (string, error) {
	resp, err := i.client.Query(ctx, vehicleOwnerQuery, map[string]any{"tokenId": vehicleID}, "")
	if err != nil {
		return "", err
	}
	if len(resp.Errors) > 0 {
		return "", fmt.Errorf("vehicle owner lookup: %s", resp.Errors[0].Message)
	}

	var payload struct {
		Vehicle struct {
			Owner string `json:"owner"`
		} `json:"vehicle"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return "", fmt.Errorf("decode vehicle owner: %w", err)
	}
	owner := strings.TrimSpace(payload.Vehicle.Owner)
	if owner == "" {
		return "", fmt.Errorf("vehicle %d has no recorded owner", vehicleID)
	}
	return owner, nil
}

const searchVehiclesQuery = `query SearchVehicles($owner: Address, $first: Int!) {
  vehicles(filterBy: {owner: $owner}, first: $first) {
    totalCount
    nodes {
      tokenId
      owner
      definition {
        make
        model
        year
      }
    }
  }
}`

// SearchVehicles lists vehicles, optionally filtered by owner address.
func (i *Identity) SearchVehicles(ctx context.Context, owner string, limit int) (*GraphQLResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	variables := map[string]any{"first": limit}
	if strings.TrimSpace(owner) != "" {
		variables["owner"] = owner
	}
	return i.client.Query(ctx, searchVehiclesQuery, variables, "")
}
