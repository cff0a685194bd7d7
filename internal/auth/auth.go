// Package auth resolves the current user's identity.
//
// The service trusts an external identity provider; this package only maps
// presented bearer tokens to stable user ids and carries the resolved id
// through request contexts.
package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrNoSession indicates no authenticated user is available.
var ErrNoSession = errors.New("auth: no authenticated session")

// SessionProvider supplies the current authenticated user id. Implementations
// return ErrNoSession (possibly wrapped) when no user is signed in.
type SessionProvider interface {
	UserID(ctx context.Context) (string, error)
}

type ctxKey struct{}

// WithUser returns a context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserFromContext extracts the user id stored by WithUser.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// ContextProvider is a SessionProvider reading the user id from the request
// context, as placed there by the server's bearer middleware.
type ContextProvider struct{}

// UserID implements SessionProvider.
func (ContextProvider) UserID(ctx context.Context) (string, error) {
	id, ok := UserFromContext(ctx)
	if !ok {
		return "", ErrNoSession
	}
	return id, nil
}

// TokenAuthenticator maps static bearer tokens to user ids. Suitable for
// self-hosted deployments; larger installs would swap in a JWT validator
// behind the same lookup.
type TokenAuthenticator struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewTokenAuthenticator builds an authenticator over a token -> user id map.
func NewTokenAuthenticator(tokens map[string]string) *TokenAuthenticator {
	cp := make(map[string]string, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &TokenAuthenticator{tokens: cp}
}

// Authenticate resolves a bearer token to a user id.
func (a *TokenAuthenticator) Authenticate(token string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.tokens[token]
	return id, ok
}

// AddToken registers or replaces a token at runtime.
func (a *TokenAuthenticator) AddToken(token, userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens[token] = userID
}

// StaticProvider is a SessionProvider that always returns the same user id.
// Used by tests and by the capture pipeline when a session is bound to a
// known user at start.
type StaticProvider struct {
	ID string
}

// UserID implements SessionProvider.
func (s StaticProvider) UserID(context.Context) (string, error) {
	if s.ID == "" {
		return "", ErrNoSession
	}
	return s.ID, nil
}
