package identity

import (
	"context"

	"github.com/goliatone/go-router"
)

var principalCtxKey = &contextKey{"principal"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the Principal in the given context
func WithContext(r context.Context, principal *Principal) context.Context {
	return context.WithValue(r, principalCtxKey, principal)
}

// FromContext finds the principal from the context.
func FromContext(ctx context.Context) (*Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(*Principal)
	return raw, ok
}

// WithClaimsContext sets the SessionClaims in the given context
func WithClaimsContext(r context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the SessionClaims from the standard context
func GetClaims(ctx context.Context) (*SessionClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*SessionClaims)
	return raw, ok
}

// GetRouterClaims extracts the SessionClaims from the router context
func GetRouterClaims(ctx router.Context, key string) (*SessionClaims, bool) {
	if key == "" {
		key = "session" // Default key used by the guard middleware
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(*SessionClaims)
	return claims, ok
}

// CallerRole returns the role of the authenticated caller, if any.
func CallerRole(ctx context.Context) (Role, bool) {
	claims, ok := GetClaims(ctx)
	if !ok {
		return "", false
	}
	return claims.UserRole, true
}
