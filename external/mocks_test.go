package external_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	identity "github.com/nestfolio/go-identity"
	"github.com/nestfolio/go-identity/external"
)

// MockPrincipals overrides just the store methods provider sign-in touches.
type MockPrincipals struct {
	mock.Mock
	identity.Principals
}

func principalArg(args mock.Arguments, index int) *identity.Principal {
	if p, ok := args.Get(index).(*identity.Principal); ok {
		return p
	}
	return nil
}

func (m *MockPrincipals) GetByEmail(ctx context.Context, email string) (*identity.Principal, error) {
	args := m.Called(ctx, email)
	return principalArg(args, 0), args.Error(1)
}

// CreateTx echoes the inserted record when no explicit return is set, the
// way the real store hands back the stored row.
func (m *MockPrincipals) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Principal, criteria ...repository.InsertCriteria) (*identity.Principal, error) {
	args := m.Called(ctx, record)
	if p := principalArg(args, 0); p != nil {
		return p, args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockPrincipals) Update(ctx context.Context, record *identity.Principal, criteria ...repository.UpdateCriteria) (*identity.Principal, error) {
	args := m.Called(ctx, record)
	return principalArg(args, 0), args.Error(1)
}

func (m *MockPrincipals) UpdateStatus(ctx context.Context, id uuid.UUID, status identity.Status, opts ...identity.StatusUpdateOption) (*identity.Principal, error) {
	args := m.Called(ctx, id, status)
	return principalArg(args, 0), args.Error(1)
}

// StubRepositoryManager runs transactions inline against the mock store.
type StubRepositoryManager struct {
	PrincipalsRepo identity.Principals
	Recorder       identity.Recorder
}

func (s *StubRepositoryManager) Principals() identity.Principals {
	return s.PrincipalsRepo
}

func (s *StubRepositoryManager) AuditRecorder() identity.Recorder {
	return s.Recorder
}

func (s *StubRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (s *StubRepositoryManager) Validate() error { return nil }

func (s *StubRepositoryManager) MustValidate() {}

var _ identity.RepositoryManager = (*StubRepositoryManager)(nil)

// CaptureRecorder collects audit entries for assertions.
type CaptureRecorder struct {
	Entries []identity.AuditEntry
}

func (c *CaptureRecorder) Record(ctx context.Context, entry identity.AuditEntry) error {
	c.Entries = append(c.Entries, entry)
	return nil
}

func testConfig() identity.HardcodedConfig {
	return identity.HardcodedConfig{
		SigningKey:      "test-signing-key",
		Issuer:          "test-issuer",
		Audience:        []string{"test-audience"},
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 14 * 24 * time.Hour,
	}
}

func staticProvider(name string, profile *external.Profile, err error) external.Provider {
	return external.ProviderFunc{
		ProviderName: name,
		ExchangeFunc: func(ctx context.Context, code string) (*external.Profile, error) {
			return profile, err
		},
	}
}
