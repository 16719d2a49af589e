package identity

import (
	"context"
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// IdentityService is the orchestrator surface the HTTP layer depends on.
type IdentityService interface {
	Login(ctx context.Context, email, password string) (*Principal, TokenPair, error)
	Register(ctx context.Context, payload RegisterPayload, opts ...RequestMetaOption) (*Principal, TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*Principal, TokenPair, error)
	IdentityFromStore(ctx context.Context, id uuid.UUID) (*Principal, error)
}

var _ IdentityService = (*Orchestrator)(nil)

// RegisterAuthRoutes mounts the session endpoints on the given router. The
// "me" route sits behind the controller's guard; everything else is public.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.
		Post(controller.Routes.Login, controller.LoginPost).
		SetName("session.login")

	app.
		Post(controller.Routes.Register, controller.RegisterPost).
		SetName("session.register")

	app.
		Post(controller.Routes.Refresh, controller.RefreshPost).
		SetName("session.refresh")

	app.
		Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("session.logout")

	app.
		Get(controller.Routes.Me, controller.Guard.Protected()(controller.Me)).
		SetName("session.me")
}

type AuthControllerRoutes struct {
	Login    string
	Register string
	Refresh  string
	Logout   string
	Me       string
}

type AuthController struct {
	Debug   bool
	Logger  Logger
	Service IdentityService
	Cookies *SessionCookies
	Guard   *Guard
	Routes  *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

// WithControllerService sets the orchestrator backing the routes.
func WithControllerService(service IdentityService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Service = service
		return c
	}
}

// WithControllerCookies sets the cookie manager used to persist sessions.
func WithControllerCookies(cookies *SessionCookies) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Cookies = cookies
		return c
	}
}

// WithControllerGuard sets the guard protecting authenticated routes.
func WithControllerGuard(guard *Guard) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Guard = guard
		return c
	}
}

// WithControllerLogger overrides the default logger.
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerRoutes overrides the default route paths.
func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

// WithControllerDebug toggles verbose request dumps.
func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Login:    "/auth/login",
			Register: "/auth/register",
			Refresh:  "/auth/refresh",
			Logout:   "/auth/logout",
			Me:       "/auth/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing IdentityService in auth controller...")
	}

	if c.Cookies == nil {
		panic("Missing SessionCookies in auth controller...")
	}

	if c.Guard == nil {
		panic("Missing Guard in auth controller...")
	}

	return c
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return RespondError(ctx, a.Logger, ValidationError(err))
	}

	if err := payload.Validate(); err != nil {
		return RespondError(ctx, a.Logger, ValidationError(err))
	}

	if a.Debug {
		fmt.Println("======= SESSION LOGIN =======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=============================")
	}

	principal, pair, err := a.Service.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	if err := a.Cookies.Store(ctx, pair); err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return RespondData(ctx, http.StatusOK, principal)
}

func (a *AuthController) RegisterPost(ctx router.Context) error {
	payload := new(RegisterPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register principal parse payload: %v", err)
		return RespondError(ctx, a.Logger, ValidationError(err))
	}

	principal, pair, err := a.Service.Register(
		ctx.Context(),
		*payload,
		WithRequestMeta(RequestMetaFromContext(ctx)),
	)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	if err := a.Cookies.Store(ctx, pair); err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return RespondData(ctx, http.StatusCreated, principal)
}

// RefreshPost rotates the session. Any failure clears both cookies so the
// client is never left holding a half-valid pair.
func (a *AuthController) RefreshPost(ctx router.Context) error {
	raw, ok := a.Cookies.ReadRefreshToken(ctx)
	if !ok {
		a.Cookies.Clear(ctx)
		return RespondError(ctx, a.Logger, ErrUnauthorized)
	}

	principal, pair, err := a.Service.Refresh(ctx.Context(), raw)
	if err != nil {
		a.Cookies.Clear(ctx)
		return RespondError(ctx, a.Logger, err)
	}

	if err := a.Cookies.Store(ctx, pair); err != nil {
		a.Cookies.Clear(ctx)
		return RespondError(ctx, a.Logger, err)
	}

	return RespondData(ctx, http.StatusOK, principal)
}

func (a *AuthController) LogoutPost(ctx router.Context) error {
	a.Cookies.Clear(ctx)
	return RespondData(ctx, http.StatusOK, map[string]any{
		"logged_out": true,
	})
}

// Me returns the sanitized principal for the current session, re-read from
// the store so the caller sees current status rather than token claims.
func (a *AuthController) Me(ctx router.Context) error {
	id, ok := a.Guard.IdentifyCaller(ctx)
	if !ok {
		return RespondError(ctx, a.Logger, ErrUnauthorized)
	}

	principal, err := a.Service.IdentityFromStore(ctx.Context(), id)
	if err != nil {
		return RespondError(ctx, a.Logger, err)
	}

	return RespondData(ctx, http.StatusOK, principal)
}
