package identity

import (
	"context"
	"fmt"
	"time"

	repository "github.com/goliatone/go-repository-bun"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the claims-facing attributes of a principal
type Identity interface {
	ID() string
	Email() string
	Role() Role
	Status() Status
}

// Config holds identity core options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	// GetAccessTokenTTL is the short-lived access token duration.
	GetAccessTokenTTL() time.Duration
	// GetRefreshTokenTTL is the long-lived refresh token duration.
	GetRefreshTokenTTL() time.Duration
	GetAccessCookieName() string
	GetRefreshCookieName() string
	// GetContextKey is the locals key guarded handlers read claims from.
	GetContextKey() string
}

// TokenPair is the result of a successful issuance: two independently
// verifiable tokens minted from the same claims.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// PrincipalStore is the read/update surface the orchestrator needs; the
// relational specifics stay behind the repository.
type PrincipalStore interface {
	GetByEmail(ctx context.Context, email string) (*Principal, error)
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*Principal, error)
	TrackAttemptedLogin(ctx context.Context, principal *Principal) error
	TrackSuccessfulLogin(ctx context.Context, principal *Principal) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// HardcodedConfig is a plain-struct Config for wiring and tests.
type HardcodedConfig struct {
	SigningKey        string
	Issuer            string
	Audience          []string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	AccessCookieName  string
	RefreshCookieName string
	ContextKey        string
}

func (c HardcodedConfig) GetSigningKey() string { return c.SigningKey }
func (c HardcodedConfig) GetIssuer() string     { return c.Issuer }
func (c HardcodedConfig) GetAudience() []string { return c.Audience }

func (c HardcodedConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenTTL == 0 {
		return 15 * time.Minute
	}
	return c.AccessTokenTTL
}

func (c HardcodedConfig) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTL == 0 {
		return 14 * 24 * time.Hour
	}
	return c.RefreshTokenTTL
}

func (c HardcodedConfig) GetAccessCookieName() string {
	if c.AccessCookieName == "" {
		return "access_token"
	}
	return c.AccessCookieName
}

func (c HardcodedConfig) GetRefreshCookieName() string {
	if c.RefreshCookieName == "" {
		return "refresh_token"
	}
	return c.RefreshCookieName
}

func (c HardcodedConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "session"
	}
	return c.ContextKey
}
