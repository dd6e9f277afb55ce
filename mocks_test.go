package account_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	account "github.com/goliatone/go-account"
	"github.com/goliatone/go-account/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

type testConfig struct {
	signingKey       string
	defaultAvatarURL string
	avatarBaseURL    string
	resetURL         string
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey:       "test-signing-key",
		defaultAvatarURL: "https://cdn.example.com/default.png",
		avatarBaseURL:    "https://api.example.com/api/avatars",
		resetURL:         "https://app.example.com/password-reset",
	}
}

func (c *testConfig) GetSigningKey() string       { return c.signingKey }
func (c *testConfig) GetTokenExpiration() int     { return 24 }
func (c *testConfig) GetIssuer() string           { return "" }
func (c *testConfig) GetEnvironment() string      { return "test" }
func (c *testConfig) GetBcryptCost() int          { return bcrypt.MinCost }
func (c *testConfig) GetDefaultAvatarURL() string { return c.defaultAvatarURL }
func (c *testConfig) GetAvatarBaseURL() string    { return c.avatarBaseURL }
func (c *testConfig) GetPasswordResetURL() string { return c.resetURL }
func (c *testConfig) GetTokenBodyField() string   { return "" }
func (c *testConfig) GetTokenQueryField() string  { return "" }
func (c *testConfig) GetTokenHeader() string      { return "" }

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := persistence.OpenAndMigrate(context.Background(), persistence.DriverSQLite, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type testEnv struct {
	db      *bun.DB
	repo    account.RepositoryManager
	hasher  *account.BcryptHasher
	tokens  *account.JWTTokenService
	config  *testConfig
	manager *account.Manager
	sink    *capturingSink
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	cfg := newTestConfig()
	hasher := account.NewBcryptHasher(bcrypt.MinCost)
	repo := account.NewRepositoryManager(db, hasher, nil)
	tokens := account.NewTokenServiceFromConfig(cfg)
	sink := &capturingSink{}
	manager := account.NewManager(repo, hasher, tokens, cfg).
		WithActivitySink(sink).
		WithLogger(&nopLogger{})

	return &testEnv{
		db:      db,
		repo:    repo,
		hasher:  hasher,
		tokens:  tokens,
		config:  cfg,
		manager: manager,
		sink:    sink,
	}
}

func (e *testEnv) signup(t *testing.T, email string) *account.User {
	t.Helper()
	user, err := e.manager.Signup(context.Background(), account.SignupInput{
		Name:     account.Name{First: "Oliver", Last: "Queen"},
		Email:    email,
		Password: "123456",
	})
	require.NoError(t, err)
	return user
}

type capturingSink struct {
	mu     sync.Mutex
	events []account.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt account.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) types() []account.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]account.ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// MockUsers implements account.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, id string) (*account.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*account.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*account.User, error) {
	args := m.Called(ctx, tx, id)
	user, _ := args.Get(0).(*account.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*account.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*account.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*account.User, error) {
	args := m.Called(ctx, tx, email)
	user, _ := args.Get(0).(*account.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByResetToken(ctx context.Context, token string) (*account.User, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*account.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByExternalID(ctx context.Context, externalID string) (*account.User, error) {
	args := m.Called(ctx, externalID)
	user, _ := args.Get(0).(*account.User)
	return user, args.Error(1)
}

func (m *MockUsers) List(ctx context.Context, opts account.ListOptions) ([]*account.User, int, error) {
	args := m.Called(ctx, opts)
	users, _ := args.Get(0).([]*account.User)
	return users, args.Int(1), args.Error(2)
}

func (m *MockUsers) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockUsers) ListDanglingAvatarRefs(ctx context.Context) ([]*account.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*account.User)
	return users, args.Error(1)
}

func (m *MockUsers) Create(ctx context.Context, record *account.User) (*account.User, error) {
	args := m.Called(ctx, record)
	user, _ := args.Get(0).(*account.User)
	return user, args.Error(1)
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *account.User) (*account.User, error) {
	args := m.Called(ctx, tx, record)
	user, _ := args.Get(0).(*account.User)
	return user, args.Error(1)
}

func (m *MockUsers) Save(ctx context.Context, record *account.User) (*account.User, error) {
	args := m.Called(ctx, record)
	user, _ := args.Get(0).(*account.User)
	return user, args.Error(1)
}

func (m *MockUsers) SaveTx(ctx context.Context, tx bun.IDB, record *account.User) (*account.User, error) {
	args := m.Called(ctx, tx, record)
	user, _ := args.Get(0).(*account.User)
	return user, args.Error(1)
}

func (m *MockUsers) Delete(ctx context.Context, record *account.User) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockUsers) DeleteTx(ctx context.Context, tx bun.IDB, record *account.User) error {
	return m.Called(ctx, tx, record).Error(0)
}

// MockAvatars implements account.Avatars
type MockAvatars struct {
	mock.Mock
}

func (m *MockAvatars) GetByID(ctx context.Context, id string) (*account.Avatar, error) {
	args := m.Called(ctx, id)
	avatar, _ := args.Get(0).(*account.Avatar)
	return avatar, args.Error(1)
}

func (m *MockAvatars) GetDefault(ctx context.Context) (*account.Avatar, error) {
	args := m.Called(ctx)
	avatar, _ := args.Get(0).(*account.Avatar)
	return avatar, args.Error(1)
}

func (m *MockAvatars) Create(ctx context.Context, record *account.Avatar) (*account.Avatar, error) {
	args := m.Called(ctx, record)
	avatar, _ := args.Get(0).(*account.Avatar)
	return avatar, args.Error(1)
}

func (m *MockAvatars) CreateTx(ctx context.Context, tx bun.IDB, record *account.Avatar) (*account.Avatar, error) {
	args := m.Called(ctx, tx, record)
	avatar, _ := args.Get(0).(*account.Avatar)
	return avatar, args.Error(1)
}

func (m *MockAvatars) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAvatars) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *MockAvatars) ListOrphans(ctx context.Context, cutoff time.Time) ([]*account.Avatar, error) {
	args := m.Called(ctx, cutoff)
	avatars, _ := args.Get(0).([]*account.Avatar)
	return avatars, args.Error(1)
}

// mockRepoManager hands out the mocked repositories
type mockRepoManager struct {
	users   *MockUsers
	avatars *MockAvatars
}

func newMockRepoManager() *mockRepoManager {
	return &mockRepoManager{users: new(MockUsers), avatars: new(MockAvatars)}
}

func (m *mockRepoManager) Validate() error          { return nil }
func (m *mockRepoManager) MustValidate()            {}
func (m *mockRepoManager) Users() account.Users     { return m.users }
func (m *mockRepoManager) Avatars() account.Avatars { return m.avatars }

func (m *mockRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

// MockMailer implements account.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendMail(ctx context.Context, msg account.MailMessage) error {
	return m.Called(ctx, msg).Error(0)
}

// memoryBlobs is an in memory account.AvatarBlobStore
type memoryBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{objects: map[string][]byte{}}
}

func (b *memoryBlobs) Put(ctx context.Context, key, contentType string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), data...)
	return nil
}

func (b *memoryBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, account.ErrAvatarNotFound
	}
	return data, nil
}

func (b *memoryBlobs) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, key)
	return nil
}

func (b *memoryBlobs) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}
