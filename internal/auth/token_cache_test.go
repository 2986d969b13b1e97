package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
)

type fakeExchanger struct {
	err   error
	calls int
	last  []Privilege
}

func (f *fakeExchanger) ExchangeVehicleToken(ctx context.Context, serviceToken string, vehicleID int64, privileges []Privilege) (VehicleToken, error) {
	f.calls++
	f.last = privileges
	if f.err != nil {
		return VehicleToken{}, f.err
	}
	return VehicleToken{
		Token:      "vehicle-token",
		Privileges: NewPrivilegeSet(privileges...),
		ExpiresAt:  time.Now().Add(10 * time.Minute),
	}, nil
}

func authenticatedManager(t *testing.T) *CredentialManager {
	t.Helper()
	manager := NewCredentialManager(configuredSettings(), &fakeIssuer{
		token: ServiceToken{AccessToken: "svc", ExpiresAt: time.Now().Add(time.Hour)},
	})
	if err := manager.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	return manager
}

func attachedSessions() *SessionStore {
	store := NewSessionStore()
	store.Attach(Session{AccessToken: "user", Address: "0xAAA"})
	return store
}

func TestEnsureVehicleToken(t *testing.T) {
	ctx := context.Background()

	t.Run("no service token", func(t *testing.T) {
		manager := NewCredentialManager(Settings{ClientID: "0xclient"}, &fakeIssuer{})
		exchanger := &fakeExchanger{}
		cache := NewTokenCache(manager, attachedSessions(), exchanger)

		_, err := cache.EnsureVehicleToken(ctx, 12345, NewPrivilegeSet(PrivilegeCommands))
		if apperrors.CodeOf(err) != apperrors.CodeAuthNotConfigured {
			t.Fatalf("expected %s, got %v", apperrors.CodeAuthNotConfigured, err)
		}
		if exchanger.calls != 0 {
			t.Errorf("expected no exchange, got %d", exchanger.calls)
		}
	})

	t.Run("no user session", func(t *testing.T) {
		exchanger := &fakeExchanger{}
		cache := NewTokenCache(authenticatedManager(t), NewSessionStore(), exchanger)

		_, err := cache.EnsureVehicleToken(ctx, 12345, NewPrivilegeSet(PrivilegeCommands))
		if apperrors.CodeOf(err) != apperrors.CodeAuthNotLoggedIn {
			t.Fatalf("expected %s, got %v", apperrors.CodeAuthNotLoggedIn, err)
		}
		if exchanger.calls != 0 {
			t.Errorf("expected no exchange, got %d", exchanger.calls)
		}
	})

	t.Run("cache hit performs one exchange", func(t *testing.T) {
		exchanger := &fakeExchanger{}
		cache := NewTokenCache(authenticatedManager(t), attachedSessions(), exchanger)
		required := NewPrivilegeSet(PrivilegeNonLocationData)

		if _, err := cache.EnsureVehicleToken(ctx, 1, required); err != nil {
			t.Fatalf("first call: %v", err)
		}
		if _, err := cache.EnsureVehicleToken(ctx, 1, required); err != nil {
			t.Fatalf("second call: %v", err)
		}
		if exchanger.calls != 1 {
			t.Errorf("expected exactly one exchange, got %d", exchanger.calls)
		}
	})

	t.Run("privilege expansion re-exchanges with the union", func(t *testing.T) {
		exchanger := &fakeExchanger{}
		cache := NewTokenCache(authenticatedManager(t), attachedSessions(), exchanger)

		if _, err := cache.EnsureVehicleToken(ctx, 1, NewPrivilegeSet(PrivilegeNonLocationData)); err != nil {
			t.Fatalf("first call: %v", err)
		}
		token, err := cache.EnsureVehicleToken(ctx, 1, NewPrivilegeSet(PrivilegeCommands))
		if err != nil {
			t.Fatalf("second call: %v", err)
		}
		if exchanger.calls != 2 {
			t.Fatalf("expected two exchanges, got %d", exchanger.calls)
		}
		union := NewPrivilegeSet(PrivilegeNonLocationData, PrivilegeCommands)
		if !token.Privileges.ContainsAll(union) {
			t.Errorf("replacement entry must cover the union, got %v", token.Privileges.Sorted())
		}
	})

	t.Run("subset of granted is a hit", func(t *testing.T) {
		exchanger := &fakeExchanger{}
		cache := NewTokenCache(authenticatedManager(t), attachedSessions(), exchanger)

		if _, err := cache.EnsureVehicleToken(ctx, 1, NewPrivilegeSet(PrivilegeNonLocationData, PrivilegeCommands)); err != nil {
			t.Fatalf("first call: %v", err)
		}
		if _, err := cache.EnsureVehicleToken(ctx, 1, NewPrivilegeSet(PrivilegeCommands)); err != nil {
			t.Fatalf("second call: %v", err)
		}
		if exchanger.calls != 1 {
			t.Errorf("expected one exchange, got %d", exchanger.calls)
		}
	})

	t.Run("expired entry is never a hit", func(t *testing.T) {
		exchanger := &fakeExchanger{}
		cache := NewTokenCache(authenticatedManager(t), attachedSessions(), exchanger)
		required := NewPrivilegeSet(PrivilegeNonLocationData)

		if _, err := cache.EnsureVehicleToken(ctx, 1, required); err != nil {
			t.Fatalf("first call: %v", err)
		}
		cache.now = func() time.Time { return time.Now().Add(time.Hour) }
		if _, err := cache.EnsureVehicleToken(ctx, 1, required); err != nil {
			t.Fatalf("second call: %v", err)
		}
		if exchanger.calls != 2 {
			t.Errorf("expected a fresh exchange after expiry, got %d", exchanger.calls)
		}
	})

	t.Run("exchange failure propagates verbatim", func(t *testing.T) {
		exchanger := &fakeExchanger{err: errors.New("privilege not granted by owner")}
		cache := NewTokenCache(authenticatedManager(t), attachedSessions(), exchanger)

		_, err := cache.EnsureVehicleToken(ctx, 1, NewPrivilegeSet(PrivilegeCommands))
		if apperrors.CodeOf(err) != apperrors.CodeTokenExchangeFailed {
			t.Fatalf("expected %s, got %v", apperrors.CodeTokenExchangeFailed, err)
		}
		if err == nil || !errors.Is(err, exchanger.err) {
			t.Errorf("expected wrapped upstream error, got %v", err)
		}
	})

	t.Run("entries are independent per vehicle", func(t *testing.T) {
		exchanger := &fakeExchanger{}
		cache := NewTokenCache(authenticatedManager(t), attachedSessions(), exchanger)
		required := NewPrivilegeSet(PrivilegeNonLocationData)

		if _, err := cache.EnsureVehicleToken(ctx, 1, required); err != nil {
			t.Fatalf("vehicle 1: %v", err)
		}
		if _, err := cache.EnsureVehicleToken(ctx, 2, required); err != nil {
			t.Fatalf("vehicle 2: %v", err)
		}
		if exchanger.calls != 2 {
			t.Errorf("expected one exchange per vehicle, got %d", exchanger.calls)
		}
	})
}
