package identity_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	identity "github.com/nestfolio/go-identity"
)

// MockPrincipals mocks the identity.Principals repository. The embedded
// interface covers the generic repository surface; only the methods the
// code under test calls are wired up.
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

func (m *MockPrincipals) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*identity.Principal, error) {
	args := m.Called(ctx, id)
	return principalArg(args, 0), args.Error(1)
}

func (m *MockPrincipals) Create(ctx context.Context, record *identity.Principal, criteria ...repository.InsertCriteria) (*identity.Principal, error) {
	args := m.Called(ctx, record)
	return principalArg(args, 0), args.Error(1)
}

func (m *MockPrincipals) CreateTx(ctx context.Context, tx bun.IDB, record *identity.Principal, criteria ...repository.InsertCriteria) (*identity.Principal, error) {
	args := m.Called(ctx, record)
	return principalArg(args, 0), args.Error(1)
}

func (m *MockPrincipals) Update(ctx context.Context, record *identity.Principal, criteria ...repository.UpdateCriteria) (*identity.Principal, error) {
	args := m.Called(ctx, record)
	return principalArg(args, 0), args.Error(1)
}

func (m *MockPrincipals) TrackAttemptedLogin(ctx context.Context, principal *identity.Principal) error {
	args := m.Called(ctx, principal)
	return args.Error(0)
}

func (m *MockPrincipals) TrackSuccessfulLogin(ctx context.Context, principal *identity.Principal) error {
	args := m.Called(ctx, principal)
	return args.Error(0)
}

func (m *MockPrincipals) UpdateStatus(ctx context.Context, id uuid.UUID, status identity.Status, opts ...identity.StatusUpdateOption) (*identity.Principal, error) {
	args := m.Called(ctx, id, status)
	return principalArg(args, 0), args.Error(1)
}

func (m *MockPrincipals) UpdateRole(ctx context.Context, id uuid.UUID, role identity.Role) (*identity.Principal, error) {
	args := m.Called(ctx, id, role)
	return principalArg(args, 0), args.Error(1)
}

func (m *MockPrincipals) Deactivate(ctx context.Context, id uuid.UUID) (*identity.Principal, error) {
	args := m.Called(ctx, id)
	return principalArg(args, 0), args.Error(1)
}

// StubRepositoryManager wires mocks into the identity.RepositoryManager
// surface without a database. RunInTx executes the callback with a zero
// transaction; the mocked Tx methods never touch it.
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

// CaptureRecorder collects audit entries so tests can assert on them.
type CaptureRecorder struct {
	Entries []identity.AuditEntry
	Err     error
}

func (c *CaptureRecorder) Record(ctx context.Context, entry identity.AuditEntry) error {
	if c.Err != nil {
		return c.Err
	}
	c.Entries = append(c.Entries, entry)
	return nil
}

var _ identity.Recorder = (*CaptureRecorder)(nil)

// MockTokenService mocks identity.TokenService.
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) IssuePair(id identity.Identity) (identity.TokenPair, error) {
	args := m.Called(id)
	pair, _ := args.Get(0).(identity.TokenPair)
	return pair, args.Error(1)
}

func (m *MockTokenService) Verify(tokenString string, want identity.TokenType) (*identity.SessionClaims, error) {
	args := m.Called(tokenString, want)
	claims, _ := args.Get(0).(*identity.SessionClaims)
	return claims, args.Error(1)
}

func (m *MockTokenService) SignClaims(claims *identity.SessionClaims) (string, error) {
	args := m.Called(claims)
	return args.String(0), args.Error(1)
}

var _ identity.TokenService = (*MockTokenService)(nil)

// MockIdentityService mocks the orchestrator surface the controller uses.
type MockIdentityService struct {
	mock.Mock
}

func (m *MockIdentityService) Login(ctx context.Context, email, password string) (*identity.Principal, identity.TokenPair, error) {
	args := m.Called(ctx, email, password)
	pair, _ := args.Get(1).(identity.TokenPair)
	return principalArg(args, 0), pair, args.Error(2)
}

func (m *MockIdentityService) Register(ctx context.Context, payload identity.RegisterPayload, opts ...identity.RequestMetaOption) (*identity.Principal, identity.TokenPair, error) {
	args := m.Called(ctx, payload)
	pair, _ := args.Get(1).(identity.TokenPair)
	return principalArg(args, 0), pair, args.Error(2)
}

func (m *MockIdentityService) Refresh(ctx context.Context, refreshToken string) (*identity.Principal, identity.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	pair, _ := args.Get(1).(identity.TokenPair)
	return principalArg(args, 0), pair, args.Error(2)
}

func (m *MockIdentityService) IdentityFromStore(ctx context.Context, id uuid.UUID) (*identity.Principal, error) {
	args := m.Called(ctx, id)
	return principalArg(args, 0), args.Error(1)
}

var _ identity.IdentityService = (*MockIdentityService)(nil)

func testConfig() identity.HardcodedConfig {
	return identity.HardcodedConfig{
		SigningKey:      "test-signing-key",
		Issuer:          "test-issuer",
		Audience:        []string{"test-audience"},
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 14 * 24 * time.Hour,
	}
}

// MockContext mocks the router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}
