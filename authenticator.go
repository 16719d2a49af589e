package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// MaxLoginAttempts is the maximun number of attempts a principal gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// DefaultPhoneRegion is used when a phone number carries no country prefix.
var DefaultPhoneRegion = "US"

// Orchestrator composes credential verification, token issuance, and
// auditing behind a single entry point for login, registration, and
// token refresh.
type Orchestrator struct {
	repo     RepositoryManager
	tokens   TokenService
	recorder Recorder
	logger   Logger
	now      func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorLogger overrides the default logger.
func WithOrchestratorLogger(l Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithOrchestratorRecorder sets the audit recorder used for registration
// entries.
func WithOrchestratorRecorder(r Recorder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.recorder = normalizeRecorder(r)
	}
}

// WithOrchestratorClock overrides the time source, mostly for tests.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator will create a new Orchestrator
func NewOrchestrator(repo RepositoryManager, tokens TokenService, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		repo:     repo,
		tokens:   tokens,
		recorder: noopRecorder{},
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Login verifies the given credentials and, on success, mints a token pair
// and records the successful login. Absent principals and password
// mismatches both surface as ErrInvalidCredentials so callers cannot probe
// which emails exist.
func (o *Orchestrator) Login(ctx context.Context, email, password string) (*Principal, TokenPair, error) {
	principal, err := o.repo.Principals().GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve principal during verification")
	}

	// provider-only accounts have no hash to compare against
	if principal.PasswordHash == "" {
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	if principal.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*principal.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			principal.LoginAttempts = 0
		}
	}

	// if we have too many attempts in the given window, cool off!
	if principal.LoginAttempts > MaxLoginAttempts {
		return nil, TokenPair{}, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, principal.PasswordHash); err != nil {
		// We have to increment the login_attempts counter and login_attempt_at
		if err2 := o.repo.Principals().TrackAttemptedLogin(ctx, principal); err2 != nil {
			return nil, TokenPair{}, goerrors.Wrap(err2, goerrors.CategoryInternal, "failed to track login attempt")
		}

		return nil, TokenPair{}, ErrInvalidCredentials
	}

	principal.EnsureStatus()
	if err := CheckStatus(principal.Status); err != nil {
		return nil, TokenPair{}, err
	}

	// reset the login_attempts counter and login_attempt_at
	if err := o.repo.Principals().TrackSuccessfulLogin(ctx, principal); err != nil {
		o.logger.Error("failed to track successful login", "error", err)
	}

	pair, err := o.tokens.IssuePair(NewIdentityFromPrincipal(principal))
	if err != nil {
		return nil, TokenPair{}, err
	}

	return principal.Sanitized(), pair, nil
}

// RegisterPayload carries the self-registration form fields.
type RegisterPayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Role      string `json:"role,omitempty"`
	Password  string `json:"password"`
}

// Validate will validate the payload
func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(validPhoneNumber)),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
		validation.Field(&r.Role, validation.By(validRoleName)),
	)
}

func validPhoneNumber(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}

	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return err
	}

	if !phonenumbers.IsValidNumber(num) {
		return goerrors.New("must be a valid phone number", goerrors.CategoryValidation)
	}

	return nil
}

func validRoleName(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}

	if _, ok := ParseRole(raw); !ok {
		return goerrors.New("must be a valid role", goerrors.CategoryValidation)
	}

	return nil
}

// Register creates a new principal in PENDING_VERIFICATION and issues a
// session pair right away so the account can use limited features while it
// awaits review. A CREATE audit entry is written best effort.
func (o *Orchestrator) Register(ctx context.Context, payload RegisterPayload, opts ...RequestMetaOption) (*Principal, TokenPair, error) {
	if err := payload.Validate(); err != nil {
		return nil, TokenPair{}, ValidationError(err)
	}

	if res := AssessPasswordStrength(payload.Password); !res.Valid {
		return nil, TokenPair{}, strengthError(res)
	}

	email := NormalizeEmail(payload.Email)

	if _, err := o.repo.Principals().GetByEmail(ctx, email); err == nil {
		return nil, TokenPair{}, ErrEmailExists
	} else if !goerrors.IsNotFound(err) {
		return nil, TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing principal")
	}

	role := RolePublic
	if payload.Role != "" {
		parsed, ok := ParseRole(payload.Role)
		if !ok {
			return nil, TokenPair{}, ValidationError(goerrors.New("must be a valid role", goerrors.CategoryValidation))
		}
		role = parsed
	}

	principal := &Principal{}
	meta := resolveRequestMeta(opts...)

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := o.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(payload.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		principal.PasswordHash = hash
		principal.Email = email
		principal.Phone = payload.Phone
		principal.FirstName = payload.FirstName
		principal.LastName = payload.LastName
		principal.Role = role
		principal.Status = StatusPending

		if principal, err = o.repo.Principals().CreateTx(ctx, tx, principal); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create principal").
				WithTextCode(TextCodeEmailExists)
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, TokenPair{}, richErr
		}

		return nil, TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "principal registration transaction failed")
	}

	createdAt := o.now()
	recordBestEffort(ctx, o.recorder, o.logger, AuditEntry{
		ActingPrincipalID: principal.ID,
		Action:            AuditActionCreate,
		EntityType:        "principal",
		EntityID:          principal.ID.String(),
		TargetPrincipalID: &principal.ID,
		NewValues: map[string]any{
			"email":  principal.Email,
			"role":   string(principal.Role),
			"status": string(principal.Status),
		},
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: &createdAt,
	})

	pair, err := o.tokens.IssuePair(NewIdentityFromPrincipal(principal))
	if err != nil {
		return nil, TokenPair{}, err
	}

	return principal.Sanitized(), pair, nil
}

// Refresh validates a refresh token, re-derives the principal's current
// status from the store, and mints a fresh pair. Verification failures of
// any kind surface as ErrUnauthorized.
func (o *Orchestrator) Refresh(ctx context.Context, refreshToken string) (*Principal, TokenPair, error) {
	if refreshToken == "" {
		return nil, TokenPair{}, ErrUnauthorized
	}

	claims, err := o.tokens.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		o.logger.Debug("refresh token rejected", "error", err)
		return nil, TokenPair{}, ErrUnauthorized
	}

	id, err := claims.PrincipalUUID()
	if err != nil {
		return nil, TokenPair{}, ErrUnauthorized
	}

	principal, err := o.repo.Principals().GetByID(ctx, id.String())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, TokenPair{}, ErrUnauthorized
		}
		return nil, TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve principal during refresh")
	}

	// token claims are a snapshot; status is re-derived here. Pending
	// accounts keep their limited session, suspended ones lose it.
	principal.EnsureStatus()
	if principal.IsSuspended() {
		return nil, TokenPair{}, ErrAccountSuspended
	}

	pair, err := o.tokens.IssuePair(NewIdentityFromPrincipal(principal))
	if err != nil {
		return nil, TokenPair{}, err
	}

	return principal.Sanitized(), pair, nil
}

// RequestMetaOption attaches request provenance to orchestrator calls.
type RequestMetaOption func(*RequestMeta)

// WithRequestMeta records the caller's IP and user agent on audit entries.
func WithRequestMeta(meta RequestMeta) RequestMetaOption {
	return func(m *RequestMeta) {
		*m = meta
	}
}

func resolveRequestMeta(opts ...RequestMetaOption) RequestMeta {
	meta := RequestMeta{}
	for _, opt := range opts {
		opt(&meta)
	}
	return meta
}

// IdentityFromStore loads a principal by ID and returns it sanitized; used
// by the "me" endpoint and external collaborators that already hold
// verified claims.
func (o *Orchestrator) IdentityFromStore(ctx context.Context, id uuid.UUID) (*Principal, error) {
	principal, err := o.repo.Principals().GetByID(ctx, id.String())
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrPrincipalNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve principal")
	}

	return principal.Sanitized(), nil
}
