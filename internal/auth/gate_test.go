package auth

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
)

type fakeOwnerLookup struct {
	owner string
	err   error
	calls int
}

func (f *fakeOwnerLookup) VehicleOwner(ctx context.Context, vehicleID int64) (string, error) {
	f.calls++
	return f.owner, f.err
}

func TestGateAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("no session denies regardless of fleet mode", func(t *testing.T) {
		for _, fleetMode := range []bool{false, true} {
			owners := &fakeOwnerLookup{owner: "0xAAA"}
			gate := NewGate(NewSessionStore(), owners, fleetMode)

			err := gate.Authorize(ctx, 12345)
			if apperrors.CodeOf(err) != apperrors.CodeAuthNotLoggedIn {
				t.Fatalf("fleetMode=%v: expected %s, got %v", fleetMode, apperrors.CodeAuthNotLoggedIn, err)
			}
			if err.Error() != "not logged in, please login" {
				t.Errorf("unexpected denial text %q", err.Error())
			}
			if owners.calls != 0 {
				t.Errorf("ownership must not be queried without a session, got %d calls", owners.calls)
			}
		}
	})

	t.Run("fleet mode skips the ownership check", func(t *testing.T) {
		owners := &fakeOwnerLookup{err: errors.New("must not be called")}
		gate := NewGate(attachedSessions(), owners, true)

		if err := gate.Authorize(ctx, 12345); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if owners.calls != 0 {
			t.Errorf("fleet mode must skip the owner lookup, got %d calls", owners.calls)
		}
	})

	t.Run("owner match is case-insensitive", func(t *testing.T) {
		owners := &fakeOwnerLookup{owner: "0xaaa"}
		gate := NewGate(attachedSessions(), owners, false)

		if err := gate.Authorize(ctx, 12345); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("different owner denies", func(t *testing.T) {
		owners := &fakeOwnerLookup{owner: "0xBBB"}
		gate := NewGate(attachedSessions(), owners, false)

		err := gate.Authorize(ctx, 12345)
		if apperrors.CodeOf(err) != apperrors.CodeAuthNotOwner {
			t.Fatalf("expected %s, got %v", apperrors.CodeAuthNotOwner, err)
		}
		if err.Error() != "not the owner of this vehicle" {
			t.Errorf("unexpected denial text %q", err.Error())
		}
	})

	t.Run("lookup failure denies", func(t *testing.T) {
		owners := &fakeOwnerLookup{err: errors.New("identity api unavailable")}
		gate := NewGate(attachedSessions(), owners, false)

		err := gate.Authorize(ctx, 12345)
		if apperrors.CodeOf(err) != apperrors.CodeAuthNotOwner {
			t.Fatalf("expected %s, got %v", apperrors.CodeAuthNotOwner, err)
		}
	})

	t.Run("ownership is re-checked on every call", func(t *testing.T) {
		owners := &fakeOwnerLookup{owner: "0xAAA"}
		gate := NewGate(attachedSessions(), owners, false)

		for i := 0; i < 3; i++ {
			if err := gate.Authorize(ctx, 12345); err != nil {
				t.Fatalf("call %d: %v", i, err)
			}
		}
		if owners.calls != 3 {
			t.Errorf("expected a live lookup per call, got %d", owners.calls)
		}
	})
}
