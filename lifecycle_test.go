package identity_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	identity "github.com/nestfolio/go-identity"
)

// memoryPrincipals is a tiny in-memory store for lifecycle tests. Only the
// methods the orchestrator and state machine touch are implemented; the
// embedded interface panics on anything else.
type memoryPrincipals struct {
	identity.Principals
	byID map[uuid.UUID]*identity.Principal
}

func newMemoryPrincipals() *memoryPrincipals {
	return &memoryPrincipals{byID: map[uuid.UUID]*identity.Principal{}}
}

func (m *memoryPrincipals) GetByEmail(ctx context.Context, email string) (*identity.Principal, error) {
	for _, p := range m.byID {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, goerrors.New("record not found", goerrors.CategoryNotFound)
}

func (m *memoryPrincipals) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*identity.Principal, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, goerrors.New("record not found", goerrors.CategoryNotFound)
	}
	if p, ok := m.byID[parsed]; ok {
		return p, nil
	}
	return nil, goerrors.New("record not found", goerrors.CategoryNotFound)
}

func (m *memoryPrincipals) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Principal, criteria ...repository.InsertCriteria) (*identity.Principal, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now()
	record.CreatedAt = &now
	m.byID[record.ID] = record
	return record, nil
}

func (m *memoryPrincipals) TrackAttemptedLogin(ctx context.Context, principal *identity.Principal) error {
	now := time.Now()
	principal.LoginAttempts++
	principal.LoginAttemptAt = &now
	return nil
}

func (m *memoryPrincipals) TrackSuccessfulLogin(ctx context.Context, principal *identity.Principal) error {
	principal.LoginAttempts = 0
	principal.LoginAttemptAt = nil
	return nil
}

func (m *memoryPrincipals) UpdateStatus(ctx context.Context, id uuid.UUID, status identity.Status, opts ...identity.StatusUpdateOption) (*identity.Principal, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, goerrors.New("record not found", goerrors.CategoryNotFound)
	}
	p.Status = status
	if status == identity.StatusSuspended {
		now := time.Now()
		p.SuspendedAt = &now
	} else {
		p.SuspendedAt = nil
	}
	return p, nil
}

// TestAccountLifecycle walks one account through its whole life: register,
// blocked login while pending, admin approval, working session, admin
// rejection, dead session. The identity keeps a single stable ID across all
// of it and the audit trail tells the story in order.
func TestAccountLifecycle(t *testing.T) {
	store := newMemoryPrincipals()
	manager := &StubRepositoryManager{PrincipalsRepo: store}
	tokens := identity.NewTokenService(testConfig())
	recorder := &CaptureRecorder{}

	orchestrator := identity.NewOrchestrator(manager, tokens,
		identity.WithOrchestratorRecorder(recorder),
	)

	adminID := uuid.New()
	admin := identity.ActorRef{ID: adminID.String(), Type: "admin"}
	states := identity.NewPrincipalStateMachine(store,
		identity.WithStateMachineRecorder(recorder),
	)

	ctx := context.Background()

	// register: account lands in pending with a limited session
	created, pair, err := orchestrator.Register(ctx, registerPayload(),
		identity.WithRequestMeta(identity.RequestMeta{IPAddress: "203.0.113.9"}),
	)
	require.NoError(t, err)
	require.Equal(t, identity.StatusPending, created.Status)
	require.NotEmpty(t, pair.AccessToken)
	accountID := created.ID

	// a pending account cannot open a fresh session with its password
	_, _, err = orchestrator.Login(ctx, created.Email, testPassword)
	assert.Equal(t, identity.ErrAccountPending, err)

	// the limited session survives a refresh though
	_, _, err = orchestrator.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	// admin approves the application
	principal := store.byID[accountID]
	_, err = states.Transition(ctx, admin, principal, identity.StatusActive,
		identity.WithTransitionReason("application reviewed"),
	)
	require.NoError(t, err)

	// now login works, and it is the same account
	active, pair, err := orchestrator.Login(ctx, created.Email, testPassword)
	require.NoError(t, err)
	assert.Equal(t, accountID, active.ID)

	claims, err := tokens.Verify(pair.AccessToken, identity.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, accountID.String(), claims.PrincipalID())

	// admin suspends the account
	_, err = states.Transition(ctx, admin, principal, identity.StatusSuspended,
		identity.WithTransitionReason("listing fraud"),
	)
	require.NoError(t, err)

	// both doors are closed now
	_, _, err = orchestrator.Login(ctx, created.Email, testPassword)
	assert.Equal(t, identity.ErrAccountSuspended, err)

	_, _, err = orchestrator.Refresh(ctx, pair.RefreshToken)
	assert.Equal(t, identity.ErrAccountSuspended, err)

	// the audit trail tells the story in order
	require.Len(t, recorder.Entries, 3)
	assert.Equal(t, identity.AuditActionCreate, recorder.Entries[0].Action)
	assert.Equal(t, identity.AuditActionApproval, recorder.Entries[1].Action)
	assert.Equal(t, identity.AuditActionRejection, recorder.Entries[2].Action)

	for _, entry := range recorder.Entries[1:] {
		assert.Equal(t, adminID, entry.ActingPrincipalID)
		require.NotNil(t, entry.TargetPrincipalID)
		assert.Equal(t, accountID, *entry.TargetPrincipalID)
	}
}

func TestLoginThrottleCountsConsecutiveFailures(t *testing.T) {
	store := newMemoryPrincipals()
	manager := &StubRepositoryManager{PrincipalsRepo: store}
	orchestrator := identity.NewOrchestrator(manager, identity.NewTokenService(testConfig()))

	principal := storedPrincipal(t, identity.StatusActive)
	store.byID[principal.ID] = principal

	ctx := context.Background()

	for i := 0; i <= identity.MaxLoginAttempts; i++ {
		_, _, err := orchestrator.Login(ctx, principal.Email, "wrong-password")
		assert.Equal(t, identity.ErrInvalidCredentials, err)
	}

	// the next attempt trips the throttle, even with the right password
	_, _, err := orchestrator.Login(ctx, principal.Email, testPassword)
	assert.Equal(t, identity.ErrTooManyLoginAttempts, err)
}
