package dimo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
)

// Command identifies a supported vehicle command. Commands map directly to
// REST paths on the devices API.
type Command string

const (
	CommandLockDoors   Command = "doors/lock"
	CommandUnlockDoors Command = "doors/unlock"
	CommandStartCharge Command = "charge/start"
	CommandStopCharge  Command = "charge/stop"
)

// ParseCommand maps a tool-facing command name to its REST path.
func ParseCommand(name string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lock_doors":
		return CommandLockDoors, nil
	case "unlock_doors":
		return CommandUnlockDoors, nil
	case "start_charge":
		return CommandStartCharge, nil
	case "stop_charge":
		return CommandStopCharge, nil
	default:
		return "", fmt.Errorf("unknown command %q: supported commands are lock_doors, unlock_doors, start_charge, stop_charge", name)
	}
}

// Devices is the client for the devices REST API: vehicle commands, VIN
// decoding, and the minting submission endpoint.
type Devices struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewDevices creates a devices API client.
func NewDevices(baseURL string) *Devices {
	return &Devices{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(),
		limiter: rate.NewLimiter(upstreamRate, upstreamBurst),
	}
}

// IssueCommand sends a command to one vehicle using its vehicle-scoped
// token and returns the raw upstream payload.
func (d *Devices) IssueCommand(ctx context.Context, vehicleToken string, vehicleID int64, command Command) (json.RawMessage, error) {
	path := fmt.Sprintf("%s/v1/vehicle/%d/commands/%s", d.baseURL, vehicleID, command)
	return d.post(ctx, path, vehicleToken, nil)
}

// DecodeVIN decodes a VIN into a device definition using the service token.
func (d *Devices) DecodeVIN(ctx context.Context, serviceToken, vin, countryCode string) (json.RawMessage, error) {
	if countryCode == "" {
		countryCode = "USA"
	}
	body := map[string]string{"vin": vin, "countryCode": countryCode}
	return d.post(ctx, d.baseURL+"/v1/vin/decode", serviceToken, body)
}

// SubmitMint forwards an externally signed minting payload for the given
// user device. Transaction construction and signing happen outside the
// bridge; this call only delivers the result.
func (d *Devices) SubmitMint(ctx context.Context, serviceToken, userDeviceID string, signedPayload json.RawMessage) (json.RawMessage, error) {
	path := fmt.Sprintf("%s/v1/user/devices/%s/commands/mint", d.baseURL, userDeviceID)
	return d.post(ctx, path, serviceToken, signedPayload)
}

func (d *Devices) post(ctx context.Context, url, bearer string, body any) (json.RawMessage, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUpstreamTransport, fmt.Sprintf("call %s", url), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUpstreamTransport, "read response body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(errors.CodeUpstreamTransport,
			fmt.Sprintf("%s returned %s: %s", url, resp.Status, string(raw)))
	}
	if len(raw) == 0 {
		raw = []byte(`{}`)
	}
	return json.RawMessage(raw), nil
}
