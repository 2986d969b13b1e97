package domain

import (
	"context"
	"sync"
	"time"

	"github.com/vehiclegrid/dimo-mcp/internal/auth"
	apperrors "github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
)

// fakeGate authorizes every vehicle except those listed in deny.
type fakeGate struct {
	deny map[int64]error

	mu    sync.Mutex
	calls []int64
}

func (g *fakeGate) Authorize(ctx context.Context, vehicleID int64) error {
	g.mu.Lock()
	g.calls = append(g.calls, vehicleID)
	g.mu.Unlock()
	if err, ok := g.deny[vehicleID]; ok {
		return err
	}
	return nil
}

func notOwnerErr() error {
	return apperrors.New(apperrors.CodeAuthNotOwner, "not the owner of this vehicle")
}

func notLoggedInErr() error {
	return apperrors.New(apperrors.CodeAuthNotLoggedIn, "not logged in, please login")
}

// fakeTokens hands out a static vehicle token, optionally failing for
// specific vehicles.
type fakeTokens struct {
	fail map[int64]error

	mu   sync.Mutex
	last auth.PrivilegeSet
}

func (f *fakeTokens) EnsureVehicleToken(ctx context.Context, vehicleID int64, required auth.PrivilegeSet) (auth.VehicleToken, error) {
	f.mu.Lock()
	f.last = required
	f.mu.Unlock()
	if err, ok := f.fail[vehicleID]; ok {
		return auth.VehicleToken{}, err
	}
	return auth.VehicleToken{
		Token:      "vehicle-token",
		Privileges: required,
		ExpiresAt:  time.Now().Add(10 * time.Minute),
	}, nil
}

// fakeServiceTokens implements ServiceTokenSource.
type fakeServiceTokens struct {
	token auth.ServiceToken
	ok    bool
}

func (f fakeServiceTokens) Token() (auth.ServiceToken, bool) {
	return f.token, f.ok
}
