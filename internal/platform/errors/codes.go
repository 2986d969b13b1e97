// Package errors provides structured error handling for the bridge.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Configuration errors
	CodeConfigMissingClientID Code = "CONFIG_MISSING_CLIENT_ID"

	// Service credential errors
	CodeAuthServiceFailed  Code = "AUTH_SERVICE_FAILED"
	CodeAuthNotConfigured  Code = "AUTH_NOT_CONFIGURED"
	CodeAuthNotLoggedIn    Code = "AUTH_NOT_LOGGED_IN"
	CodeAuthNotOwner       Code = "AUTH_NOT_OWNER"
	CodeAuthCallbackFailed Code = "AUTH_CALLBACK_FAILED"

	// Vehicle token errors
	CodeTokenExchangeFailed Code = "TOKEN_EXCHANGE_FAILED"

	// Upstream errors
	CodeUpstreamTransport Code = "UPSTREAM_TRANSPORT"
)
