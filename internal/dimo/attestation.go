package dimo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
)

// AttestationKind selects the credential type issued for a vehicle.
type AttestationKind string

const (
	AttestationVIN             AttestationKind = "vin"
	AttestationProofOfMovement AttestationKind = "pom"
)

// ParseAttestationKind maps a tool-facing attestation type to its API path.
func ParseAttestationKind(name string) (AttestationKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "vin":
		return AttestationVIN, nil
	case "pom", "proof_of_movement":
		return AttestationProofOfMovement, nil
	default:
		return "", fmt.Errorf("unknown attestation type %q: supported types are vin, pom", name)
	}
}

// Attestation is the client for the attestation API, which issues verifiable
// credentials for a vehicle.
type Attestation struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewAttestation creates an attestation API client.
func NewAttestation(baseURL string) *Attestation {
	return &Attestation{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPClient(),
		limiter: rate.NewLimiter(upstreamRate, upstreamBurst),
	}
}

// Create issues a credential of the given kind for the vehicle. Requires a
// vehicle token carrying the VIN credential privilege.
func (a *Attestation) Create(ctx context.Context, vehicleToken string, vehicleID int64, kind AttestationKind) (json.RawMessage, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/vc/%s/%d", a.baseURL, kind, vehicleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+vehicleToken)

	resp, err := a.http.Do(req)
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
