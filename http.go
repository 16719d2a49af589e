package identity

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// SessionCookies stores the token pair in transport-level cookies: HTTP-only,
// secure, same-site restricted, scoped to the whole origin, with expiries
// matching each token's lifetime.
type SessionCookies struct {
	cfg    Config
	Logger Logger
}

// NewSessionCookies creates the cookie manager for the configured names.
func NewSessionCookies(cfg Config) *SessionCookies {
	return &SessionCookies{
		cfg:    cfg,
		Logger: defLogger{},
	}
}

func (s *SessionCookies) WithLogger(logger Logger) *SessionCookies {
	if logger != nil {
		s.Logger = logger
	}
	return s
}

// Store sets both session cookies. It validates the pair up front so the jar
// is either fully written or untouched.
func (s *SessionCookies) Store(c router.Context, pair TokenPair) error {
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return goerrors.New("incomplete token pair", goerrors.CategoryBadInput).
			WithTextCode(TextCodeInternal)
	}

	s.setCookie(c, s.cfg.GetAccessCookieName(), pair.AccessToken, pair.AccessExpiresAt)
	s.setCookie(c, s.cfg.GetRefreshCookieName(), pair.RefreshToken, pair.RefreshExpiresAt)
	return nil
}

// ReadAccessToken returns the access token cookie value, if present.
func (s *SessionCookies) ReadAccessToken(c router.Context) (string, bool) {
	val := c.Cookies(s.cfg.GetAccessCookieName())
	return val, val != ""
}

// ReadRefreshToken returns the refresh token cookie value, if present.
func (s *SessionCookies) ReadRefreshToken(c router.Context) (string, bool) {
	val := c.Cookies(s.cfg.GetRefreshCookieName())
	return val, val != ""
}

// Clear removes both session cookies unconditionally. Calling it with no
// active session is not an error.
func (s *SessionCookies) Clear(c router.Context) {
	s.cookieDel(c, s.cfg.GetAccessCookieName())
	s.cookieDel(c, s.cfg.GetRefreshCookieName())
}

func (s *SessionCookies) setCookie(c router.Context, name, val string, expires time.Time) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (s *SessionCookies) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// ErrorPayload is the wire shape of every failed response.
type ErrorPayload struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// ErrorBody carries the stable code contract clients switch on.
type ErrorBody struct {
	Message    string `json:"message"`
	Code       string `json:"code"`
	StatusCode int    `json:"statusCode"`
}

// SuccessPayload wraps successful response data.
type SuccessPayload struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// RespondError renders any error as the discriminated payload. Validation,
// authentication, and authorization errors pass through with their stable
// codes; anything else is logged and collapsed into INTERNAL_ERROR so no
// implementation detail leaks.
func RespondError(c router.Context, logger Logger, err error) error {
	if logger == nil {
		logger = defLogger{}
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithTextCode(TextCodeInternal).
			WithCode(goerrors.CodeInternal)
	}

	statusCode := richErr.Code
	if statusCode == 0 {
		statusCode = goerrors.CodeInternal
	}

	code := richErr.TextCode
	message := richErr.Message

	switch richErr.Category {
	case goerrors.CategoryInternal:
		logger.Error(
			"request failed with internal error",
			"error", richErr.Message,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
		code = TextCodeInternal
		message = "An unexpected error occurred"
	case goerrors.CategoryRateLimit:
		// Throttled logins map onto the credentials contract so attempt
		// counting cannot be used to probe accounts.
		code = TextCodeInvalidCreds
		message = ErrInvalidCredentials.Message
		statusCode = goerrors.CodeUnauthorized
	default:
		if code == "" {
			code = TextCodeValidation
		}
	}

	return c.JSON(statusCode, ErrorPayload{
		Success: false,
		Error: ErrorBody{
			Message:    message,
			Code:       code,
			StatusCode: statusCode,
		},
	})
}

// RespondData renders a success envelope.
func RespondData(c router.Context, statusCode int, data any) error {
	return c.JSON(statusCode, SuccessPayload{
		Success: true,
		Data:    data,
	})
}

// RequestMetaFromContext captures where a request came from for audit entries.
func RequestMetaFromContext(c router.Context) RequestMeta {
	ip := c.Header("X-Forwarded-For")
	if ip == "" {
		ip = c.Header("X-Real-IP")
	}

	return RequestMeta{
		IPAddress: ip,
		UserAgent: c.Header("User-Agent"),
	}
}
