package domain

import (
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vehiclegrid/dimo-mcp/internal/dimo"
	apperrors "github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
)

// denialCodes are the error codes surfaced to the caller as structured
// denial results instead of protocol-level errors. Anything else is treated
// as an unexpected failure and propagates.
var denialCodes = map[apperrors.Code]struct{}{
	apperrors.CodeAuthNotLoggedIn:     {},
	apperrors.CodeAuthNotOwner:        {},
	apperrors.CodeAuthNotConfigured:   {},
	apperrors.CodeTokenExchangeFailed: {},
}

// IsDenial reports whether err is a user-facing denial rather than an
// unexpected failure.
func IsDenial(err error) bool {
	_, ok := denialCodes[apperrors.CodeOf(err)]
	return ok
}

// DenialResult builds a tool result carrying the denial reason. The result
// is flagged as an error for the caller but never crosses the host boundary
// as a protocol failure.
func DenialResult(meta ToolCallMetadata, err error) *mcp.CallToolResult {
	result := CallToolResultWithMetadata(meta)
	result.IsError = true
	result.Content = []mcp.Content{&mcp.TextContent{Text: err.Error()}}
	return result
}

// schemaMismatchPhrases are the upstream GraphQL error fragments that
// indicate the query does not match the current schema.
var schemaMismatchPhrases = []string{
	"cannot query field",
	"unknown type",
	"unknown argument",
	"is not defined",
	"did you mean",
}

// SchemaHint inspects upstream GraphQL errors and, when they look like a
// schema mismatch, returns guidance to introspect the schema before
// retrying. It returns an empty string otherwise.
func SchemaHint(graphQLErrors []dimo.GraphQLError) string {
	for _, upstreamErr := range graphQLErrors {
		message := strings.ToLower(upstreamErr.Message)
		for _, phrase := range schemaMismatchPhrases {
			if strings.Contains(message, phrase) {
				return "The query does not match the upstream schema. Run the introspect_schema tool and retry with a corrected query."
			}
		}
	}
	return ""
}
