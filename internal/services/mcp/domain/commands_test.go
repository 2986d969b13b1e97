package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/vehiclegrid/dimo-mcp/internal/dimo"
)

// fakeDispatcher records issued commands and fails the vehicles in fail.
type fakeDispatcher struct {
	fail map[int64]error

	mu     sync.Mutex
	issued []int64
}

func (d *fakeDispatcher) IssueCommand(ctx context.Context, vehicleToken string, vehicleID int64, command dimo.Command) ([]byte, error) {
	d.mu.Lock()
	d.issued = append(d.issued, vehicleID)
	d.mu.Unlock()
	if err, ok := d.fail[vehicleID]; ok {
		return nil, err
	}
	return json.RawMessage(fmt.Sprintf(`{"vehicle":%d,"status":"queued"}`, vehicleID)), nil
}

func TestVehicleCommandHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("one denial does not abort the batch", func(t *testing.T) {
		gate := &fakeGate{deny: map[int64]error{2: notOwnerErr()}}
		tokens := &fakeTokens{}
		dispatcher := &fakeDispatcher{}
		handler := VehicleCommandHandler(gate, tokens, dispatcher)

		_, result, err := handler(ctx, nil, VehicleCommandInput{
			Command:         "lock_doors",
			VehicleTokenIDs: []int64{1, 2, 3},
		})
		if err != nil {
			t.Fatalf("handler: %v", err)
		}

		if len(result.Successful) != 2 {
			t.Fatalf("expected 2 successes, got %+v", result.Successful)
		}
		if result.Successful[0].VehicleTokenID != 1 || result.Successful[1].VehicleTokenID != 3 {
			t.Errorf("successes not sorted by vehicle: %+v", result.Successful)
		}
		if len(result.Failed) != 1 || result.Failed[0].VehicleTokenID != 2 {
			t.Fatalf("expected vehicle 2 to fail, got %+v", result.Failed)
		}
		if !strings.Contains(result.Failed[0].Reason, "not the owner") {
			t.Errorf("unexpected failure reason %q", result.Failed[0].Reason)
		}
		if result.Summary.Total != 3 || result.Summary.Succeeded != 2 || result.Summary.Failed != 1 {
			t.Errorf("unexpected summary %+v", result.Summary)
		}

		for _, issued := range dispatcher.issued {
			if issued == 2 {
				t.Error("command must not be dispatched to a denied vehicle")
			}
		}
	})

	t.Run("dispatch failure is reported per vehicle", func(t *testing.T) {
		gate := &fakeGate{}
		tokens := &fakeTokens{}
		dispatcher := &fakeDispatcher{fail: map[int64]error{1: fmt.Errorf("device offline")}}
		handler := VehicleCommandHandler(gate, tokens, dispatcher)

		_, result, err := handler(ctx, nil, VehicleCommandInput{
			Command:         "start_charge",
			VehicleTokenIDs: []int64{1},
		})
		if err != nil {
			t.Fatalf("handler: %v", err)
		}
		if len(result.Failed) != 1 || result.Failed[0].Reason != "device offline" {
			t.Fatalf("expected the dispatch error, got %+v", result.Failed)
		}
	})

	t.Run("unknown command is rejected up front", func(t *testing.T) {
		handler := VehicleCommandHandler(&fakeGate{}, &fakeTokens{}, &fakeDispatcher{})
		_, _, err := handler(ctx, nil, VehicleCommandInput{Command: "eject", VehicleTokenIDs: []int64{1}})
		if err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		handler := VehicleCommandHandler(&fakeGate{}, &fakeTokens{}, &fakeDispatcher{})
		_, _, err := handler(ctx, nil, VehicleCommandInput{Command: "lock_doors"})
		if err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("larger batch than the concurrency limit completes", func(t *testing.T) {
		gate := &fakeGate{}
		tokens := &fakeTokens{}
		dispatcher := &fakeDispatcher{}
		handler := VehicleCommandHandler(gate, tokens, dispatcher)

		ids := make([]int64, 10)
		for i := range ids {
			ids[i] = int64(i + 1)
		}
		_, result, err := handler(ctx, nil, VehicleCommandInput{Command: "unlock_doors", VehicleTokenIDs: ids})
		if err != nil {
			t.Fatalf("handler: %v", err)
		}
		if result.Summary.Succeeded != 10 {
			t.Errorf("expected all vehicles to succeed, got %+v", result.Summary)
		}
	})
}
