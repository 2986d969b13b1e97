package auth

import (
	"context"
	"log"
	"sync"
	"time"

	apperrors "github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
)

// ServiceToken is the bearer credential proving the bridge's own identity
// to upstream APIs. The payload is opaque; it is never parsed beyond the
// expiry extracted at issuance time.
type ServiceToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// TokenIssuer exchanges long-lived service credentials for a short-lived
// service token.
type TokenIssuer interface {
	IssueServiceToken(ctx context.Context, settings Settings) (ServiceToken, error)
}

// CredentialState describes the credential manager lifecycle.
type CredentialState string

const (
	StateUnconfigured    CredentialState = "UNCONFIGURED"
	StateConfiguring     CredentialState = "CONFIGURING"
	StateAuthenticated   CredentialState = "AUTHENTICATED"
	StateUnauthenticated CredentialState = "UNAUTHENTICATED"
)

// CredentialManager holds the process-wide service token. The token is
// acquired once at startup and kept for the process lifetime; there is no
// refresh loop. A failed acquisition leaves the bridge in a degraded mode
// where public tools keep working and vehicle-scoped tools report that the
// service is not configured.
type CredentialManager struct {
	settings Settings
	issuer   TokenIssuer

	mu    sync.RWMutex
	state CredentialState
	token ServiceToken
}

// NewCredentialManager creates a credential manager in the unconfigured state.
func NewCredentialManager(settings Settings, issuer TokenIssuer) *CredentialManager {
	return &CredentialManager{
		settings: settings,
		issuer:   issuer,
		state:    StateUnconfigured,
	}
}

// Acquire exchanges the configured service credentials for a service token
// and stores it. On failure the prior token, if any, is left untouched and
// the process keeps running.
func (m *CredentialManager) Acquire(ctx context.Context) error {
	if !m.settings.HasServiceCredentials() {
		m.setState(StateUnauthenticated)
		log.Printf("service auth skipped: domain or private key not configured client_id=%s", m.settings.ClientID)
		return apperrors.New(apperrors.CodeAuthNotConfigured, "service credentials are not configured")
	}

	m.setState(StateConfiguring)
	token, err := m.issuer.IssueServiceToken(ctx, m.settings)
	if err != nil {
		m.setState(StateUnauthenticated)
		log.Printf("service auth failed: client_id=%s err=%v", m.settings.ClientID, err)
		return apperrors.Wrap(apperrors.CodeAuthServiceFailed, "acquire service token", err)
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.token = token
	m.mu.Unlock()
	log.Printf("service auth ok: client_id=%s expires_at=%s", m.settings.ClientID, token.ExpiresAt.Format(time.RFC3339))
	return nil
}

// Token returns the held service token, reporting false when the bridge is
// not authenticated at the service level.
func (m *CredentialManager) Token() (ServiceToken, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated {
		return ServiceToken{}, false
	}
	return m.token, true
}

// State returns the current credential lifecycle state.
func (m *CredentialManager) State() CredentialState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *CredentialManager) setState(state CredentialState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}
