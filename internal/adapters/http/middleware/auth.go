package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// PasscodeAuth guards the API with a single trainer passcode. Clients
// exchange the passcode once at /api/auth for a bearer token; every
// other request presents the token. A zero-value hash disables auth
// entirely (local-only setups).
type PasscodeAuth struct {
	hash []byte

	mu     sync.RWMutex
	tokens map[string]time.Time // token -> issued at
	ttl    time.Duration
}

// NewPasscodeAuth creates an auth guard from a bcrypt passcode hash.
// An empty hash means every request is allowed through.
func NewPasscodeAuth(bcryptHash string, ttl time.Duration) *PasscodeAuth {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &PasscodeAuth{
		hash:   []byte(bcryptHash),
		tokens: make(map[string]time.Time),
		ttl:    ttl,
	}
}

// Enabled reports whether a passcode hash is configured.
func (a *PasscodeAuth) Enabled() bool {
	return len(a.hash) > 0
}

// Exchange verifies the passcode and mints a bearer token.
// POST: On success a token valid for the configured TTL is returned
func (a *PasscodeAuth) Exchange(passcode string) (string, bool) {
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(passcode)); err != nil {
		slog.Warn("auth_event", "event", "passcode_rejected")
		return "", false
	}
	token, err := generateToken()
	if err != nil {
		return "", false
	}
	a.mu.Lock()
	a.tokens[token] = time.Now()
	a.mu.Unlock()
	slog.Info("auth_event", "event", "token_issued")
	return token, true
}

// Valid reports whether the bearer token is known and unexpired.
func (a *PasscodeAuth) Valid(token string) bool {
	if token == "" {
		return false
	}
	a.mu.RLock()
	issued, ok := a.tokens[token]
	a.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Since(issued) > a.ttl {
		a.mu.Lock()
		delete(a.tokens, token)
		a.mu.Unlock()
		return false
	}
	return true
}

// Middleware rejects requests without a valid bearer token. When auth
// is disabled it is a pass-through.
func (a *PasscodeAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		if !a.Valid(requestToken(r)) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestToken extracts the bearer token from the Authorization header,
// falling back to the token query parameter. The fallback exists for
// WebSocket and calendar-subscription clients that cannot set headers.
func requestToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return r.URL.Query().Get("token")
}

// generateToken returns a 256-bit random token, hex encoded.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
