package httpx

import (
	"context"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/service"
)

// authKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type authKey struct{}

// RequestAuth is what the guard middleware stores for downstream handlers:
// the session record plus the freshly computed authorization.
type RequestAuth struct {
	Session *domainauth.Session
	Authz   service.Authorization
}

// SetAuthInContext returns a child context that carries the request auth.
// If auth is nil, the original ctx is returned unchanged.
func SetAuthInContext(ctx context.Context, auth *RequestAuth) context.Context {
	if auth == nil {
		return ctx
	}
	return context.WithValue(ctx, authKey{}, auth)
}

// GetAuthFromContext returns the request auth and a boolean indicating presence.
func GetAuthFromContext(ctx context.Context) (*RequestAuth, bool) {
	if auth, ok := ctx.Value(authKey{}).(*RequestAuth); ok && auth != nil {
		return auth, true
	}
	return nil, false
}

// LevelFromContext returns the authorization level of the current request,
// or LevelNone when the request is unauthenticated.
func LevelFromContext(ctx context.Context) domainauth.Level {
	if auth, ok := GetAuthFromContext(ctx); ok {
		return auth.Authz.Level
	}
	return domainauth.LevelNone
}
