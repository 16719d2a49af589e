package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenService mints and verifies session token pairs.
type TokenService interface {
	IssuePair(identity Identity) (TokenPair, error)
	Verify(tokenString string, want TokenType) (*SessionClaims, error)
	SignClaims(claims *SessionClaims) (string, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption customizes token service construction.
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithTokenLogger overrides the logger.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService instance. The signing key is
// process-wide configuration, never derived from request data.
func NewTokenService(cfg Config, opts ...TokenServiceOption) *TokenServiceImpl {
	ts := &TokenServiceImpl{
		signingKey: []byte(cfg.GetSigningKey()),
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		issuer:     cfg.GetIssuer(),
		audience:   jwt.ClaimStrings(cfg.GetAudience()),
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// IssuePair mints an access/refresh pair from the same identity claims. The
// two tokens differ only in type and expiry.
func (ts *TokenServiceImpl) IssuePair(identity Identity) (TokenPair, error) {
	if identity == nil {
		return TokenPair{}, goerrors.New("identity is required", goerrors.CategoryBadInput)
	}

	now := ts.now()

	access, accessExp, err := ts.mint(identity, TokenTypeAccess, now, ts.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, refreshExp, err := ts.mint(identity, TokenTypeRefresh, now, ts.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (ts *TokenServiceImpl) mint(identity Identity, typ TokenType, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:       identity.ID(),
		UserEmail: identity.Email(),
		UserRole:  identity.Role(),
		TokenType: typ,
	}

	ensureTokenID(&claims.RegisteredClaims)

	signed, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// SignClaims signs arbitrary session claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return signedString, nil
}

// Verify parses and validates a token string, returning structured claims.
// Failures are discriminated (EXPIRED, MALFORMED, BAD_SIGNATURE) so callers
// can tell "needs refresh" from "reject outright"; it never panics across
// component boundaries.
func (ts *TokenServiceImpl) Verify(tokenString string, want TokenType) (*SessionClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService verify encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		switch {
		case goerrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenBadSignature
		default:
			return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
				WithTextCode(ErrTokenMalformed.TextCode)
		}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService verify could not decode claims")
		return nil, ErrTokenMalformed
	}

	if claims.TokenType != want {
		return nil, ErrTokenWrongType
	}

	return claims, nil
}

// TokenValidator validates a single token type without tying callers to a
// specific signing implementation.
type TokenValidator interface {
	Verify(tokenString string, want TokenType) (*SessionClaims, error)
}

var _ TokenService = (*TokenServiceImpl)(nil)
var _ TokenValidator = (*TokenServiceImpl)(nil)
