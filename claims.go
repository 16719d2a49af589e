package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid"
)

// TokenType discriminates the two halves of a session pair. A refresh token
// is never accepted where an access token is required, and vice versa.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// SessionClaims is the signed, self-contained session structure. Claims are
// a cache of a past truth: anything with real consequence re-derives status
// from the principal store at the refresh boundary.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID       string    `json:"uid,omitempty"`
	UserEmail string    `json:"email,omitempty"`
	UserRole  Role      `json:"role,omitempty"`
	TokenType TokenType `json:"typ,omitempty"`
}

// PrincipalID returns the principal id carried by the claims.
func (c *SessionClaims) PrincipalID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// PrincipalUUID parses the principal id as a UUID.
func (c *SessionClaims) PrincipalUUID() (uuid.UUID, error) {
	return uuid.Parse(c.PrincipalID())
}

// Email returns the email claim.
func (c *SessionClaims) Email() string {
	return c.UserEmail
}

// Role returns the global role claim.
func (c *SessionClaims) Role() Role {
	return c.UserRole
}

// Type returns the token type discriminator.
func (c *SessionClaims) Type() TokenType {
	return c.TokenType
}

// IsAccess reports whether the claims belong to an access token.
func (c *SessionClaims) IsAccess() bool {
	return c.TokenType == TokenTypeAccess
}

// IsRefresh reports whether the claims belong to a refresh token.
func (c *SessionClaims) IsRefresh() bool {
	return c.TokenType == TokenTypeRefresh
}

// HasRole checks set membership against the allowed roles.
func (c *SessionClaims) HasRole(roles ...Role) bool {
	for _, role := range roles {
		if c.UserRole == role {
			return true
		}
	}
	return false
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedTime returns the issued at time
func (c *SessionClaims) IssuedTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = shortuuid.New()
	}
}
