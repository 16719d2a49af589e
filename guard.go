package identity

import (
	"strings"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// Guard resolves the calling principal from a request and enforces
// authentication and role preconditions before a handler runs. Claims are
// trusted for the access token's lifetime; status freshness is resolved at
// the refresh boundary, not per request.
type Guard struct {
	validator    TokenValidator
	cookies      *SessionCookies
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

// NewGuard builds the request guard for the given validator and cookie manager.
func NewGuard(validator TokenValidator, cookies *SessionCookies, cfg Config) *Guard {
	g := &Guard{
		validator: validator,
		cookies:   cookies,
		cfg:       cfg,
		Logger:    defLogger{},
	}

	g.ErrorHandler = func(c router.Context, err error) error {
		return RespondError(c, g.Logger, err)
	}

	return g
}

func (g *Guard) WithLogger(logger Logger) *Guard {
	if logger != nil {
		g.Logger = logger
	}
	return g
}

// Protected authenticates the request: it extracts the access token (cookie
// first, Authorization header as fallback), verifies it, and attaches the
// claims to both router locals and the standard context. Missing or invalid
// tokens end the request with 401.
func (g *Guard) Protected() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			claims, err := g.authenticate(c)
			if err != nil {
				return g.ErrorHandler(c, err)
			}

			c.Locals(g.cfg.GetContextKey(), claims)
			c.SetContext(WithClaimsContext(c.Context(), claims))

			return hf(c)
		}
	}
}

// RequireRole authorizes the already-authenticated caller against a closed
// role set. An insufficient role yields 403 with no detail about which roles
// would have been admitted. Runs after Protected.
func (g *Guard) RequireRole(roles ...Role) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			claims, ok := GetRouterClaims(c, g.cfg.GetContextKey())
			if !ok {
				return g.ErrorHandler(c, ErrUnauthorized)
			}

			if err := CheckRole(claims, roles...); err != nil {
				return g.ErrorHandler(c, err)
			}

			return hf(c)
		}
	}
}

// IdentifyCaller returns the authenticated principal's id, or false when the
// request carries no valid session.
func (g *Guard) IdentifyCaller(c router.Context) (uuid.UUID, bool) {
	claims, ok := GetRouterClaims(c, g.cfg.GetContextKey())
	if !ok {
		var err error
		if claims, err = g.authenticate(c); err != nil {
			return uuid.Nil, false
		}
	}

	id, err := claims.PrincipalUUID()
	if err != nil {
		return uuid.Nil, false
	}

	return id, true
}

func (g *Guard) authenticate(c router.Context) (*SessionClaims, error) {
	raw, ok := g.cookies.ReadAccessToken(c)
	if !ok {
		raw = bearerToken(c)
	}

	if raw == "" {
		return nil, ErrUnauthorized
	}

	claims, err := g.validator.Verify(raw, TokenTypeAccess)
	if err != nil {
		g.Logger.Debug("guard rejected access token", "error", err)
		if IsTokenExpiredError(err) {
			return nil, ErrTokenExpired
		}
		return nil, ErrUnauthorized
	}

	return claims, nil
}

// CheckRole is the pure authorization decision: nil when the claims' role is
// in the allowed set, ErrForbidden otherwise, ErrUnauthorized for nil claims.
func CheckRole(claims *SessionClaims, roles ...Role) error {
	if claims == nil {
		return ErrUnauthorized
	}

	if len(roles) == 0 {
		return nil
	}

	if claims.HasRole(roles...) {
		return nil
	}

	return ErrForbidden
}

// CheckStatus is the opportunistic status gate: callers that already hold
// the principal's current status can enforce it without a store round-trip.
func CheckStatus(status Status) error {
	switch status {
	case StatusSuspended:
		return ErrAccountSuspended
	case StatusPending:
		return ErrAccountPending
	default:
		return nil
	}
}

func bearerToken(c router.Context) string {
	header := c.Header(router.HeaderAuthorization)
	if header == "" {
		return ""
	}

	const scheme = "Bearer "
	if !strings.HasPrefix(header, scheme) {
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(header, scheme))
}
