package domain

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vehiclegrid/dimo-mcp/internal/auth"
	"github.com/vehiclegrid/dimo-mcp/internal/authflow"
)

// LoginStarter begins an authorization flow and returns the URL the user
// must open plus the channel resolved with the flow outcome.
type LoginStarter func(ctx context.Context) (loginURL string, done <-chan authflow.Result, err error)

// InitiateLoginInput represents the MCP tool input for starting a login.
type InitiateLoginInput struct{}

// InitiateLoginResult represents the MCP tool output for starting a login.
type InitiateLoginResult struct {
	LoginURL string `json:"login_url" jsonschema:"URL the user must open in a browser to grant access"`
	Message  string `json:"message" jsonschema:"instructions for completing the login"`
}

// InitiateLoginTool defines the MCP tool schema for starting a login.
func InitiateLoginTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "initiate_login",
		Description: "Starts the delegated-access authorization flow. Returns a login URL for the user to open; the session attaches automatically once the browser redirect completes.",
	}
}

// InitiateLoginHandler starts the callback listener and attaches the
// resulting session in the background. The flow outlives the tool call, so
// it is detached from the call's cancellation.
func InitiateLoginHandler(start LoginStarter, sessions *auth.SessionStore) mcp.ToolHandlerFor[InitiateLoginInput, InitiateLoginResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ InitiateLoginInput) (*mcp.CallToolResult, InitiateLoginResult, error) {
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, InitiateLoginResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		meta := ToolCallMetadata{InvocationID: invocationID}

		loginURL, done, err := start(context.WithoutCancel(ctx))
		if err != nil {
			return nil, InitiateLoginResult{}, fmt.Errorf("start login flow: %w", err)
		}

		go func() {
			result := <-done
			if result.Err != nil {
				log.Printf("login flow failed: %v", result.Err)
				return
			}
			sessions.Attach(result.Session)
			log.Printf("login ok: address=%s", result.Session.Address)
		}()

		return CallToolResultWithMetadata(meta), InitiateLoginResult{
			LoginURL: loginURL,
			Message:  "Open the login URL in a browser and complete the authorization. Use check_session to confirm the session attached.",
		}, nil
	}
}

// CheckSessionInput represents the MCP tool input for session status.
type CheckSessionInput struct{}

// CheckSessionResult represents the MCP tool output for session status.
type CheckSessionResult struct {
	ServiceState string `json:"service_state" jsonschema:"service credential state: UNCONFIGURED, CONFIGURING, AUTHENTICATED, or UNAUTHENTICATED"`
	LoggedIn     bool   `json:"logged_in" jsonschema:"whether a user session is attached"`
	Address      string `json:"address,omitempty" jsonschema:"attached session's on-chain address"`
	Email        string `json:"email,omitempty" jsonschema:"attached session's email, when known"`
	ExpiresAt    string `json:"expires_at,omitempty" jsonschema:"RFC3339 session expiry, when known"`
}

// CheckSessionTool defines the MCP tool schema for session status.
func CheckSessionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "check_session",
		Description: "Reports the bridge's service credential state and whether a user session is attached.",
	}
}

// CheckSessionHandler reports auth status without touching the network.
func CheckSessionHandler(credentials *auth.CredentialManager, sessions *auth.SessionStore) mcp.ToolHandlerFor[CheckSessionInput, CheckSessionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ CheckSessionInput) (*mcp.CallToolResult, CheckSessionResult, error) {
		invocationID, err := NewInvocationID()
		if err != nil {
			return nil, CheckSessionResult{}, fmt.Errorf("generate invocation id: %w", err)
		}
		meta := ToolCallMetadata{InvocationID: invocationID}

		result := CheckSessionResult{ServiceState: string(credentials.State())}
		if session, ok := sessions.Current(); ok {
			result.LoggedIn = true
			result.Address = session.Address
			result.Email = session.Email
			if !session.ExpiresAt.IsZero() {
				result.ExpiresAt = session.ExpiresAt.Format(time.RFC3339)
			}
		}
		return CallToolResultWithMetadata(meta), result, nil
	}
}
