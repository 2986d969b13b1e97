package dimo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vehiclegrid/dimo-mcp/internal/auth"
	"github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
	"github.com/vehiclegrid/dimo-mcp/internal/platform/timeouts"
)

// clientAssertionTTL bounds the validity of the signed client assertion
// presented during service-token issuance.
const clientAssertionTTL = 5 * time.Minute

// AuthAPI implements service-token issuance and vehicle token exchange
// against the network's auth endpoints.
type AuthAPI struct {
	authURL     string
	exchangeURL string
	http        *http.Client
	limiter     *rate.Limiter
	now         func() time.Time
}

// NewAuthAPI creates a client for the credential issuance and token
// exchange endpoints.
func NewAuthAPI(authURL, exchangeURL string) *AuthAPI {
	return &AuthAPI{
		authURL:     strings.TrimRight(authURL, "/"),
		exchangeURL: strings.TrimRight(exchangeURL, "/"),
		http: &http.Client{
			Timeout:   timeouts.TokenExchange,
			Transport: newHTTPClient().Transport,
		},
		limiter: rate.NewLimiter(upstreamRate, upstreamBurst),
		now:     time.Now,
	}
}

// IssueServiceToken exchanges the configured service credentials for a
// short-lived service token. The credentials are presented as a signed
// client assertion; the returned token payload is treated as opaque.
func (a *AuthAPI) IssueServiceToken(ctx context.Context, settings auth.Settings) (auth.ServiceToken, error) {
	assertion, err := a.signClientAssertion(settings)
	if err != nil {
		return auth.ServiceToken{}, fmt.Errorf("sign client assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", settings.ClientID)
	form.Set("domain", settings.Domain)
	form.Set("client_assertion_type", "urn:ietf:params:oauth:client-assertion-type:jwt-bearer")
	form.Set("client_assertion", assertion)

	if err := a.limiter.Wait(ctx); err != nil {
		return auth.ServiceToken{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL+"/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return auth.ServiceToken{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return auth.ServiceToken{}, errors.Wrap(errors.CodeUpstreamTransport, "call auth endpoint", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return auth.ServiceToken{}, errors.Wrap(errors.CodeUpstreamTransport, "read auth response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return auth.ServiceToken{}, errors.New(errors.CodeUpstreamTransport,
			fmt.Sprintf("auth endpoint returned %s: %s", resp.Status, string(raw)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return auth.ServiceToken{}, errors.Wrap(errors.CodeUpstreamTransport,
			fmt.Sprintf("malformed auth response: %s", string(raw)), err)
	}
	if payload.AccessToken == "" {
		return auth.ServiceToken{}, errors.New(errors.CodeUpstreamTransport,
			fmt.Sprintf("auth response carried no access token: %s", string(raw)))
	}

	expiresAt := TokenExpiry(payload.AccessToken)
	if payload.ExpiresIn > 0 {
		expiresAt = a.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return auth.ServiceToken{AccessToken: payload.AccessToken, ExpiresAt: expiresAt}, nil
}

// signClientAssertion builds the ES256 client assertion from the
// configured PEM private key.
func (a *AuthAPI) signClientAssertion(settings auth.Settings) (string, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(settings.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    settings.ClientID,
		Subject:   settings.ClientID,
		Audience:  jwt.ClaimStrings{a.authURL},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(clientAssertionTTL)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
}

// ExchangeVehicleToken exchanges the service token for a vehicle-scoped
// token carrying the requested privileges.
func (a *AuthAPI) ExchangeVehicleToken(ctx context.Context, serviceToken string, vehicleID int64, privileges []auth.Privilege) (auth.VehicleToken, error) {
	request := struct {
		TokenID    int64            `json:"tokenId"`
		Privileges []auth.Privilege `json:"privileges"`
	}{TokenID: vehicleID, Privileges: privileges}

	body, err := json.Marshal(request)
	if err != nil {
		return auth.VehicleToken{}, fmt.Errorf("marshal exchange request: %w", err)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return auth.VehicleToken{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.exchangeURL+"/v1/tokens/exchange", bytes.NewReader(body))
	if err != nil {
		return auth.VehicleToken{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+serviceToken)

	resp, err := a.http.Do(req)
	if err != nil {
		return auth.VehicleToken{}, errors.Wrap(errors.CodeUpstreamTransport, "call token exchange endpoint", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return auth.VehicleToken{}, errors.Wrap(errors.CodeUpstreamTransport, "read exchange response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return auth.VehicleToken{}, errors.New(errors.CodeUpstreamTransport,
			fmt.Sprintf("token exchange returned %s: %s", resp.Status, string(raw)))
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return auth.VehicleToken{}, errors.Wrap(errors.CodeUpstreamTransport,
			fmt.Sprintf("malformed exchange response: %s", string(raw)), err)
	}
	if payload.Token == "" {
		return auth.VehicleToken{}, errors.New(errors.CodeUpstreamTransport,
			fmt.Sprintf("exchange response carried no token: %s", string(raw)))
	}

	return auth.VehicleToken{
		Token:      payload.Token,
		Privileges: auth.NewPrivilegeSet(privileges...),
		ExpiresAt:  TokenExpiry(payload.Token),
	}, nil
}

// TokenExpiry extracts the expiry claim from a bearer token without
// verifying its signature. Verification belongs to the upstream APIs; the
// bridge only needs the timestamp for cache staleness. A zero time is
// returned when the claim cannot be read.
func TokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
