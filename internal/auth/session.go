package auth

import (
	"sync"
	"time"
)

// Session is the user's delegated-access grant, obtained via the external
// redirect-based authorization flow. Address is the on-chain identity used
// for ownership checks.
type Session struct {
	AccessToken string
	Address     string
	Email       string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// SessionStore holds at most one delegated-access session. A new successful
// authorization overwrites the prior one; there is no teardown and no expiry
// sweep. An expired session is only detected when an upstream API rejects a
// token derived from it.
type SessionStore struct {
	mu      sync.RWMutex
	session *Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Attach unconditionally replaces the stored session.
func (s *SessionStore) Attach(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &session
}

// Current returns the stored session, reporting false when none is attached.
func (s *SessionStore) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// IsAttached reports whether a user session is attached.
func (s *SessionStore) IsAttached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}
