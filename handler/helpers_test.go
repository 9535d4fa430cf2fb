package handler

import (
	"context"
	"go-draw-api/config"
	"go-draw-api/model"
	"go-draw-api/service"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testIP = "192.0.2.1"

var t0 = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

type mockTokenAuthority struct{ mock.Mock }

func (m *mockTokenAuthority) Rotate(ctx context.Context, refreshToken, ip string) (*model.TokenPair, error) {
	args := m.Called(ctx, refreshToken, ip)
	pair, _ := args.Get(0).(*model.TokenPair)
	return pair, args.Error(1)
}

func (m *mockTokenAuthority) Revoke(ctx context.Context, refreshToken, ip string) (bool, error) {
	args := m.Called(ctx, refreshToken, ip)
	return args.Bool(0), args.Error(1)
}


func (m *mockTokenAuthority) ActiveSessions(ctx context.Context, userID string) ([]*model.RefreshToken, error) {
	args := m.Called(ctx, userID)
	sessions, _ := args.Get(0).([]*model.RefreshToken)
	return sessions, args.Error(1)
}

func (m *mockTokenAuthority) ValidateAccessClaimsIgnoringExpiry(token string) (*model.AppClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*model.AppClaims)
	return claims, args.Error(1)
}

type mockSessionTerminator struct{ mock.Mock }

func (m *mockSessionTerminator) Logout(ctx context.Context, userID, ip string) (int64, error) {
	args := m.Called(ctx, userID, ip)
	return args.Get(0).(int64), args.Error(1)
}

type mockAccountService struct{ mock.Mock }

func (m *mockAccountService) Register(ctx context.Context, req *model.RegisterRequest, ip string) (*model.AuthResponse, error) {
	args := m.Called(ctx, req, ip)
	resp, _ := args.Get(0).(*model.AuthResponse)
	return resp, args.Error(1)
}

func (m *mockAccountService) Login(ctx context.Context, req *model.LoginRequest, ip string) (*model.AuthResponse, error) {
	args := m.Called(ctx, req, ip)
	resp, _ := args.Get(0).(*model.AuthResponse)
	return resp, args.Error(1)
}

func (m *mockAccountService) DeleteAccount(ctx context.Context, userID, password, ip string) error {
	return m.Called(ctx, userID, password, ip).Error(0)
}

func newTestCodec(t *testing.T, now func() time.Time) *service.AccessTokenCodec {
	t.Helper()
	keys, err := service.NewSigningKeyProvider(config.JWTConfig{
		TokenKey:                 strings.Repeat("k", service.MinSigningKeyLength),
		Issuer:                   "go-draw-api",
		Audience:                 "go-draw-client",
		AccessTokenExpiryMinutes: 15,
		RefreshTokenExpiryDays:   7,
	})
	require.NoError(t, err)
	return service.NewAccessTokenCodec(keys, now)
}

func newRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = testIP + ":54321"
	return req
}

func withUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), UserIDKey, userID))
}

func serve(h AppHandler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ErrorHandlingMiddleware(h).ServeHTTP(rr, req)
	return rr
}
