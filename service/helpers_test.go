package service

import (
	"context"
	"go-draw-api/common"
	"go-draw-api/config"
	"go-draw-api/model"
	"go-draw-api/repository"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testSecret = strings.Repeat("k", MinSigningKeyLength)
	t0         = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		TokenKey:                 testSecret,
		Issuer:                   "go-draw-api",
		Audience:                 "go-draw-client",
		AccessTokenExpiryMinutes: 15,
		RefreshTokenExpiryDays:   7,
	}
}

func newTestKeys(t *testing.T) *SigningKeyProvider {
	t.Helper()
	keys, err := NewSigningKeyProvider(testJWTConfig())
	require.NoError(t, err)
	return keys
}

// testClock is a settable clock shared by the codec and the service.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(at time.Time) *testClock { return &testClock{now: at} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(at time.Time) {
	c.mu.Lock()
	c.now = at
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

// fakeUsers is an in-memory user directory.
type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*model.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrUserNotFound
}

func (f *fakeUsers) VerifyPassword(user *model.User, password string) bool {
	return CheckPasswordHash(password, user.Password)
}

func (f *fakeUsers) remove(id string) {
	f.mu.Lock()
	delete(f.users, id)
	f.mu.Unlock()
}

func testUser() *model.User {
	return &model.User{
		ID:              "6f1c2a7e-0000-4000-8000-000000000001",
		Username:        "sketcher",
		Email:           "sketcher@draw.io",
		DisplayName:     "Sketcher",
		ExperienceLevel: model.ExperienceIntermediate,
	}
}

func newRedisTokenStore(t *testing.T) (*repository.RedisTokenRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return repository.NewRedisTokenRepository(rdb, "rt"), mr
}

type tokenFixture struct {
	svc   *TokenService
	store *repository.RedisTokenRepository
	codec *AccessTokenCodec
	clock *testClock
	users *fakeUsers
	user  *model.User
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	store, _ := newRedisTokenStore(t)
	clock := newTestClock(t0)
	keys := newTestKeys(t)
	codec := NewAccessTokenCodec(keys, clock.Now)
	user := testUser()
	users := newFakeUsers(user)
	svc := NewTokenService(store, users, codec, keys, nil).WithClock(clock.Now)
	return &tokenFixture{svc: svc, store: store, codec: codec, clock: clock, users: users, user: user}
}

// mockTokenRepo is a testify mock of ITokenRepository.
type mockTokenRepo struct{ mock.Mock }

func (m *mockTokenRepo) Insert(ctx context.Context, token *model.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepo) FindByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RefreshToken), args.Error(1)
}

func (m *mockTokenRepo) FindActiveByUser(ctx context.Context, userID string, now time.Time) ([]*model.RefreshToken, error) {
	args := m.Called(ctx, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RefreshToken), args.Error(1)
}

func (m *mockTokenRepo) FindExpired(ctx context.Context, now time.Time) ([]*model.RefreshToken, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RefreshToken), args.Error(1)
}

func (m *mockTokenRepo) UpdateIfActive(ctx context.Context, token string, now time.Time, rev model.Revocation) (bool, error) {
	args := m.Called(ctx, token, now, rev)
	return args.Bool(0), args.Error(1)
}

func (m *mockTokenRepo) Rotate(ctx context.Context, oldToken string, now time.Time, rev model.Revocation, next *model.RefreshToken) error {
	args := m.Called(ctx, oldToken, now, rev, next)
	return args.Error(0)
}

func (m *mockTokenRepo) RevokeAllForUser(ctx context.Context, userID string, now time.Time, rev model.Revocation) (int64, error) {
	args := m.Called(ctx, userID, now, rev)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
