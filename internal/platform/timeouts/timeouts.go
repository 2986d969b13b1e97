// Package timeouts defines shared timeout constants used across the bridge.
// Centralizing these values prevents drift between upstream call sites and
// makes the durations discoverable.
package timeouts

import "time"

// UpstreamCall caps a single GraphQL or REST request to an upstream API.
const UpstreamCall = 30 * time.Second

// TokenExchange caps a service-token or vehicle-token issuance round trip.
const TokenExchange = 15 * time.Second

// OwnershipLookup caps the identity API owner query performed before every
// vehicle-scoped operation.
const OwnershipLookup = 10 * time.Second

// AuthCallback is how long the local authorization callback listener waits
// for the browser redirect before giving up.
const AuthCallback = 5 * time.Minute

// CallbackShutdown limits how long the callback listener waits for in-flight
// requests during graceful shutdown.
const CallbackShutdown = 5 * time.Second
