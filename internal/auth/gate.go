package auth

import (
	"context"
	"strings"

	apperrors "github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
)

// OwnerLookup resolves a vehicle's current on-chain owner from the public
// identity API.
type OwnerLookup interface {
	VehicleOwner(ctx context.Context, vehicleID int64) (string, error)
}

// Gate verifies that the attached user may operate on a vehicle before any
// vehicle-scoped request is issued.
//
// Ownership is queried live on every call and deliberately never cached:
// vehicles change hands, and a stale answer here would be a security defect.
type Gate struct {
	sessions  *SessionStore
	owners    OwnerLookup
	fleetMode bool
}

// NewGate creates an ownership gate.
func NewGate(sessions *SessionStore, owners OwnerLookup, fleetMode bool) *Gate {
	return &Gate{sessions: sessions, owners: owners, fleetMode: fleetMode}
}

// Authorize returns nil when the vehicle operation may proceed, or a domain
// error carrying the denial reason.
//
// With fleet mode enabled the ownership check is skipped entirely: any
// vehicle reachable through the service's delegated access is in scope. A
// session is still required either way.
func (g *Gate) Authorize(ctx context.Context, vehicleID int64) error {
	session, ok := g.sessions.Current()
	if !ok {
		return apperrors.New(apperrors.CodeAuthNotLoggedIn, "not logged in, please login")
	}
	if g.fleetMode {
		return nil
	}

	owner, err := g.owners.VehicleOwner(ctx, vehicleID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAuthNotOwner, "not the owner of this vehicle", err)
	}
	if !strings.EqualFold(owner, session.Address) {
		return apperrors.New(apperrors.CodeAuthNotOwner, "not the owner of this vehicle")
	}
	return nil
}
