package external

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"

	identity "github.com/nestfolio/go-identity"
)

// Authenticator orchestrates provider-backed sign-in: it exchanges an
// authorization code for a profile, then attaches to an existing principal
// by email or creates a new ACTIVE one. Externally verified identities are
// trusted more than self-registration, so the pending gate does not apply.
type Authenticator struct {
	providers map[string]Provider
	repo      identity.RepositoryManager
	tokens    identity.TokenService
	recorder  identity.Recorder
	states    identity.PrincipalStateMachine
	logger    identity.Logger
	now       func() time.Time
}

// Option configures the authenticator.
type Option func(*Authenticator)

// WithProvider registers an identity provider.
func WithProvider(provider Provider) Option {
	return func(a *Authenticator) {
		if provider != nil {
			a.providers[provider.Name()] = provider
		}
	}
}

// WithRecorder sets the audit recorder for sign-in entries.
func WithRecorder(recorder identity.Recorder) Option {
	return func(a *Authenticator) {
		if recorder != nil {
			a.recorder = recorder
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger identity.Logger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAuthenticator creates a provider-backed authenticator.
func NewAuthenticator(repo identity.RepositoryManager, tokens identity.TokenService, opts ...Option) *Authenticator {
	a := &Authenticator{
		providers: make(map[string]Provider),
		repo:      repo,
		tokens:    tokens,
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	if a.recorder == nil {
		a.recorder = repo.AuditRecorder()
	}

	a.states = identity.NewPrincipalStateMachine(
		repo.Principals(),
		identity.WithStateMachineRecorder(a.recorder),
		identity.WithStateMachineClock(a.now),
	)

	return a
}

// SignIn completes the exchange with the named provider and returns a
// sanitized principal plus a fresh token pair.
func (a *Authenticator) SignIn(ctx context.Context, providerName, code string, meta identity.RequestMeta) (*identity.Principal, identity.TokenPair, error) {
	provider, ok := a.providers[providerName]
	if !ok {
		return nil, identity.TokenPair{}, ErrProviderNotFound
	}

	profile, err := provider.Exchange(ctx, code)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, identity.TokenPair{}, richErr
		}
		return nil, identity.TokenPair{}, goerrors.Wrap(err, goerrors.CategoryAuth, "code exchange failed").
			WithTextCode(TextCodeExchangeFail).
			WithCode(goerrors.CodeUnauthorized)
	}

	if profile == nil || profile.Email == "" {
		return nil, identity.TokenPair{}, ErrEmailMissing
	}

	if profile.Subject == "" {
		return nil, identity.TokenPair{}, ErrExchangeFailed
	}

	if profile.Provider == "" {
		profile.Provider = provider.Name()
	}

	email := identity.NormalizeEmail(profile.Email)

	principal, err := a.repo.Principals().GetByEmail(ctx, email)
	if err != nil {
		if !goerrors.IsNotFound(err) {
			return nil, identity.TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up principal")
		}
		principal, err = a.createPrincipal(ctx, email, profile, meta)
	} else {
		principal, err = a.attachPrincipal(ctx, principal, profile, meta)
	}

	if err != nil {
		return nil, identity.TokenPair{}, err
	}

	pair, err := a.tokens.IssuePair(identity.NewIdentityFromPrincipal(principal))
	if err != nil {
		return nil, identity.TokenPair{}, err
	}

	return principal.Sanitized(), pair, nil
}

// createPrincipal provisions a new principal for a first-touch external
// identity. It is born ACTIVE with a verified email; the ID derives from the
// provider subject so retried sign-ins converge on the same row.
func (a *Authenticator) createPrincipal(ctx context.Context, email string, profile *Profile, meta identity.RequestMeta) (*identity.Principal, error) {
	now := a.now()

	principal := &identity.Principal{
		Email:           email,
		FirstName:       profile.FirstName,
		LastName:        profile.LastName,
		Role:            identity.RolePublic,
		Status:          identity.StatusActive,
		Provider:        profile.Provider,
		ProviderSubject: profile.Subject,
		EmailVerifiedAt: &now,
	}

	if id, err := hashid.NewUUID(profile.Provider + ":" + profile.Subject); err == nil {
		principal.ID = id
	}

	err := a.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := a.repo.Principals().CreateTx(ctx, tx, principal)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create principal")
		}
		principal = created
		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "external sign-in transaction failed")
	}

	a.record(ctx, identity.AuditEntry{
		ActingPrincipalID: principal.ID,
		Action:            identity.AuditActionCreate,
		EntityType:        "principal",
		EntityID:          principal.ID.String(),
		TargetPrincipalID: &principal.ID,
		NewValues: map[string]any{
			"email":    principal.Email,
			"provider": principal.Provider,
			"status":   string(principal.Status),
		},
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: &now,
	})

	return principal, nil
}

// attachPrincipal links the provider identity onto an existing account. A
// pending self-registration is promoted to ACTIVE on the spot since the
// provider already vouched for the email.
func (a *Authenticator) attachPrincipal(ctx context.Context, principal *identity.Principal, profile *Profile, meta identity.RequestMeta) (*identity.Principal, error) {
	principal.EnsureStatus()

	if principal.IsSuspended() {
		return nil, identity.ErrAccountSuspended
	}

	touched := false

	if principal.Provider == "" {
		principal.Provider = profile.Provider
		principal.ProviderSubject = profile.Subject
		touched = true
	}

	if principal.EmailVerifiedAt == nil {
		now := a.now()
		principal.EmailVerifiedAt = &now
		touched = true
	}

	if principal.FirstName == "" && profile.FirstName != "" {
		principal.FirstName = profile.FirstName
		touched = true
	}

	if principal.LastName == "" && profile.LastName != "" {
		principal.LastName = profile.LastName
		touched = true
	}

	if touched {
		updated, err := a.repo.Principals().Update(ctx, principal, repository.UpdateByID(principal.ID.String()))
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to attach provider identity")
		}
		principal = updated
	}

	if principal.IsPending() {
		actor := identity.ActorRef{ID: principal.ID.String(), Type: "principal"}
		promoted, err := a.states.Transition(ctx, actor, principal, identity.StatusActive,
			identity.WithTransitionReason("external identity verified"),
			identity.WithTransitionRequestMeta(meta),
		)
		if err != nil {
			return nil, err
		}
		principal = promoted
	}

	return principal, nil
}

func (a *Authenticator) record(ctx context.Context, entry identity.AuditEntry) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.Record(ctx, entry); err != nil && a.logger != nil {
		a.logger.Warn("audit recorder error: %v", err)
	}
}
