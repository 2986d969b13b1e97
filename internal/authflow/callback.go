// Package authflow runs the bounded-lifetime local HTTP listener that
// receives the authorization redirect and resolves it into a user session.
package authflow

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vehiclegrid/dimo-mcp/internal/auth"
	apperrors "github.com/vehiclegrid/dimo-mcp/internal/platform/errors"
	"github.com/vehiclegrid/dimo-mcp/internal/platform/timeouts"
)

// Result carries the outcome of one authorization flow. Exactly one of
// Session or Err is meaningful.
type Result struct {
	Session auth.Session
	Err     error
}

// Listener is a single-use local HTTP server that waits for the
// authorization redirect. It resolves exactly once, with either the parsed
// session or an error, then shuts itself down. An inactivity timeout
// guarantees the listener never outlives an abandoned login.
type Listener struct {
	addr     string
	server   *http.Server
	listener net.Listener
	results  chan Result
	resolve  sync.Once
	cancel   context.CancelFunc
}

// Start binds the listener on addr and begins waiting for the redirect.
// timeout bounds the whole flow; zero means the default.
func Start(ctx context.Context, addr string, timeout time.Duration) (*Listener, error) {
	if timeout <= 0 {
		timeout = timeouts.AuthCallback
	}

	tcp, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind callback listener on %s: %w", addr, err)
	}

	flowCtx, cancel := context.WithTimeout(ctx, timeout)
	l := &Listener{
		addr:     tcp.Addr().String(),
		listener: tcp,
		results:  make(chan Result, 1),
		cancel:   cancel,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", l.handleCallback)
	l.server = &http.Server{Handler: mux, ReadHeaderTimeout: timeouts.CallbackShutdown}

	go func() {
		if err := l.server.Serve(tcp); err != nil && err != http.ErrServerClosed {
			l.finish(Result{Err: apperrors.Wrap(apperrors.CodeAuthCallbackFailed, "callback listener failed", err)})
		}
	}()
	go func() {
		<-flowCtx.Done()
		if flowCtx.Err() == context.DeadlineExceeded {
			l.finish(Result{Err: apperrors.New(apperrors.CodeAuthCallbackFailed,
				fmt.Sprintf("authorization timed out after %s; run the login tool again", timeout))})
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeouts.CallbackShutdown)
		defer shutdownCancel()
		_ = l.server.Shutdown(shutdownCtx)
	}()

	return l, nil
}

// RedirectURI returns the URI the authorization flow should redirect to.
func (l *Listener) RedirectURI() string {
	return fmt.Sprintf("http://%s/callback", l.addr)
}

// Done returns the channel resolved with the flow outcome.
func (l *Listener) Done() <-chan Result {
	return l.results
}

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		description := query.Get("error_description")
		if description == "" {
			description = errCode
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Authorization failed. You can close this window.")
		l.finish(Result{Err: apperrors.New(apperrors.CodeAuthCallbackFailed,
			fmt.Sprintf("authorization failed: %s", description))})
		return
	}

	token := query.Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	session := ParseSession(token, query.Get("walletAddress"), query.Get("email"))
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Login complete. You can close this window.")
	l.finish(Result{Session: session})
}

func (l *Listener) finish(result Result) {
	l.resolve.Do(func() {
		l.results <- result
		l.cancel()
	})
}

// sessionClaims are the delegated-access token claims the bridge reads.
// The token is not verified here; verification is the upstream APIs' job.
type sessionClaims struct {
	jwt.RegisteredClaims
	EthereumAddress string `json:"ethereum_address"`
	Email           string `json:"email"`
}

// ParseSession builds a session from the redirect parameters, falling back
// to the token's unverified claims for any value the query omitted.
func ParseSession(token, walletAddress, email string) auth.Session {
	session := auth.Session{
		AccessToken: token,
		Address:     strings.TrimSpace(walletAddress),
		Email:       strings.TrimSpace(email),
		CreatedAt:   time.Now().UTC(),
	}

	var claims sessionClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil {
		if session.Address == "" {
			session.Address = claims.EthereumAddress
		}
		if session.Email == "" {
			session.Email = claims.Email
		}
		if claims.ExpiresAt != nil {
			session.ExpiresAt = claims.ExpiresAt.Time
		}
	}
	return session
}
