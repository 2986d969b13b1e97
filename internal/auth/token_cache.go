package auth

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
)

// defaultVehicleTokenTTL applies when the exchange endpoint returns a token
// whose expiry cannot be determined.
const defaultVehicleTokenTTL = 10 * time.Minute

// VehicleToken is a bearer credential authorizing operations on one vehicle
// with a bounded privilege set.
type VehicleToken struct {
	Token      string
	Privileges PrivilegeSet
	ExpiresAt  time.Time
}

// TokenExchanger exchanges the service token for a vehicle-scoped token.
type TokenExchanger interface {
	ExchangeVehicleToken(ctx context.Context, serviceToken string, vehicleID int64, privileges []Privilege) (VehicleToken, error)
}

// TokenCache maps a vehicle token id to its cached vehicle-scoped token.
//
// Entries are created lazily on first authorized access and replaced, never
// merged, when the required privileges outgrow the granted set. Staleness is
// checked at read time; there is no eviction loop. Concurrent misses on the
// same vehicle may both exchange; the last writer wins, which is acceptable
// because exchanges are idempotent.
type TokenCache struct {
	credentials *CredentialManager
	sessions    *SessionStore
	exchanger   TokenExchanger
	now         func() time.Time

	mu      sync.Mutex
	entries map[int64]VehicleToken
}

// NewTokenCache creates an empty vehicle token cache.
func NewTokenCache(credentials *CredentialManager, sessions *SessionStore, exchanger TokenExchanger) *TokenCache {
	return &TokenCache{
		credentials: credentials,
		sessions:    sessions,
		exchanger:   exchanger,
		now:         time.Now,
		entries:     make(map[int64]VehicleToken),
	}
}

// EnsureVehicleToken returns a vehicle-scoped token covering the required
// privileges, exchanging the service token for a fresh one on cache miss,
// expiry, or privilege insufficiency.
//
// A user session is a precondition for any exchange even though the exchange
// itself uses the service token: the bridge only acts on a vehicle after the
// user has explicitly granted access.
func (c *TokenCache) EnsureVehicleToken(ctx context.Context, vehicleID int64, required PrivilegeSet) (VehicleToken, error) {
	serviceToken, ok := c.credentials.Token()
	if !ok {
		return VehicleToken{}, apperrors.New(apperrors.CodeAuthNotConfigured,
			"service is not authenticated; configure client id, domain, and private key")
	}
	if !c.sessions.IsAttached() {
		return VehicleToken{}, apperrors.New(apperrors.CodeAuthNotLoggedIn, "not logged in, please login")
	}

	c.mu.Lock()
	entry, hit := c.entries[vehicleID]
	c.mu.Unlock()
	if hit && c.now().Before(entry.ExpiresAt) && entry.Privileges.ContainsAll(required) {
		return entry, nil
	}

	// Request the union of the new requirement and anything previously
	// granted so the replacement entry never narrows an active need.
	request := required
	if hit {
		request = required.Union(entry.Privileges)
	}

	fresh, err := c.exchanger.ExchangeVehicleToken(ctx, serviceToken.AccessToken, vehicleID, request.Sorted())
	if err != nil {
		return VehicleToken{}, apperrors.Wrap(apperrors.CodeTokenExchangeFailed, err.Error(), err)
	}
	if len(fresh.Privileges) == 0 {
		fresh.Privileges = request
	}
	if fresh.ExpiresAt.IsZero() {
		fresh.ExpiresAt = c.now().Add(defaultVehicleTokenTTL)
	}

	c.mu.Lock()
	c.entries[vehicleID] = fresh
	c.mu.Unlock()
	return fresh, nil
}
