// Package auth implements the credential and authorization core of the
// bridge: service credential acquisition, the delegated user session,
// the per-vehicle token cache, and the ownership gate that every
// vehicle-scoped operation must pass before an upstream request is made.
package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vehiclegrid/dimo-mcp/internal/platform/config"
	apperrors "github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
)

// settingsEnv holds raw env values before post-parse validation.
type settingsEnv struct {
	ClientID       string `env:"DIMO_CLIENT_ID"`
	Domain         string `env:"DIMO_DOMAIN"`
	PrivateKey     string `env:"DIMO_PRIVATE_KEY"`
	FleetMode      bool   `env:"DIMO_FLEET_MODE"          envDefault:"false"`
	LoginBaseURL   string `env:"DIMO_LOGIN_BASE_URL"      envDefault:"https://login.dimo.org"`
	EntryState     string `env:"DIMO_ENTRY_STATE"         envDefault:"LOGIN"`
	GraphQLHeaders string `env:"DIMO_GRAPHQL_HEADERS"`

	IdentityURL      string `env:"DIMO_IDENTITY_URL"       envDefault:"https://identity-api.dimo.zone/query"`
	TelemetryURL     string `env:"DIMO_TELEMETRY_URL"      envDefault:"https://telemetry-api.dimo.zone/query"`
	DevicesURL       string `env:"DIMO_DEVICES_URL"        envDefault:"https://devices-api.dimo.zone"`
	AuthURL          string `env:"DIMO_AUTH_URL"           envDefault:"https://auth.dimo.zone"`
	TokenExchangeURL string `env:"DIMO_TOKEN_EXCHANGE_URL" envDefault:"https://token-exchange-api.dimo.zone"`
	AttestationURL   string `env:"DIMO_ATTESTATION_URL"    envDefault:"https://attestation-api.dimo.zone"`
	CallbackAddr     string `env:"DIMO_CALLBACK_ADDR"      envDefault:"localhost:8349"`
}

// Settings is the immutable configuration snapshot loaded once per process.
//
// Only the client identifier is validated here. Domain and private key are
// tolerated empty so that public tools keep working; their absence surfaces
// later as a failed service-token acquisition.
type Settings struct {
	ClientID       string
	Domain         string
	PrivateKey     string
	FleetMode      bool
	LoginBaseURL   string
	EntryState     string
	GraphQLHeaders map[string]string

	IdentityURL      string
	TelemetryURL     string
	DevicesURL       string
	AuthURL          string
	TokenExchangeURL string
	AttestationURL   string
	CallbackAddr     string
}

// LoadSettings reads bridge configuration from the environment.
//
// A missing client identifier is reported as a config error, but the
// populated settings are returned anyway: the error is fatal only to
// service-token acquisition, and the caller keeps serving public tools in
// a degraded mode.
func LoadSettings() (Settings, error) {
	var raw settingsEnv
	if err := config.ParseEnv(&raw); err != nil {
		return Settings{}, err
	}

	headers := map[string]string{}
	if strings.TrimSpace(raw.GraphQLHeaders) != "" {
		if err := json.Unmarshal([]byte(raw.GraphQLHeaders), &headers); err != nil {
			return Settings{}, fmt.Errorf("parse DIMO_GRAPHQL_HEADERS: %w", err)
		}
	}

	var loadErr error
	if strings.TrimSpace(raw.ClientID) == "" {
		loadErr = apperrors.New(apperrors.CodeConfigMissingClientID, "missing client identifier")
	}

	return Settings{
		ClientID:         strings.TrimSpace(raw.ClientID),
		Domain:           strings.TrimSpace(raw.Domain),
		PrivateKey:       strings.TrimSpace(raw.PrivateKey),
		FleetMode:        raw.FleetMode,
		LoginBaseURL:     raw.LoginBaseURL,
		EntryState:       raw.EntryState,
		GraphQLHeaders:   headers,
		IdentityURL:      raw.IdentityURL,
		TelemetryURL:     raw.TelemetryURL,
		DevicesURL:       raw.DevicesURL,
		AuthURL:          raw.AuthURL,
		TokenExchangeURL: raw.TokenExchangeURL,
		AttestationURL:   raw.AttestationURL,
		CallbackAddr:     raw.CallbackAddr,
	}, loadErr
}

// HasServiceCredentials reports whether the settings carry everything
// needed to request a service token.
func (s Settings) HasServiceCredentials() bool {
	return s.ClientID != "" && s.Domain != "" && s.PrivateKey != ""
}

// LoginURL builds the authorization redirect URL for the given local
// callback address.
func (s Settings) LoginURL(redirectURI string) string {
	return fmt.Sprintf("%s?clientId=%s&redirectUri=%s&entryState=%s",
		strings.TrimRight(s.LoginBaseURL, "/"), s.ClientID, redirectURI, s.EntryState)
}
