//go:build integration

// file: router/router_test.go

package router_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"go-draw-api/app"
	"go-draw-api/config"
	"go-draw-api/db"
	"go-draw-api/logger"
	"go-draw-api/model"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testApp *app.App
var testRedisClient *redis.Client

func TestMain(m *testing.M) {
	logger.Init()
	config.LoadConfig("../")
	cfg := config.AppConfig

	// --- Database Connection ---
	cfg.Database.Port = "5434"
	cfg.Database.Name = cfg.Database.Name + "_test"
	database, err := sql.Open("postgres", db.DSN(cfg.Database))
	if err != nil {
		log.Fatalf("could not connect to test database: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err = database.Ping(); err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		log.Fatalf("database not ready: %v", err)
	}
	if err := db.RunMigrations(database); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// --- Redis Connection for Integration Tests ---
	testRedisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       1, // Use a separate DB for test isolation.
	})
	if _, err := testRedisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("could not connect to test redis: %v", err)
	}

	cfg.RateLimit.Enabled = false
	testApp, err = app.New(&cfg, database, testRedisClient, prometheus.NewRegistry())
	if err != nil {
		log.Fatalf("could not wire app: %v", err)
	}

	exitCode := m.Run()

	database.Close()
	testRedisClient.Close()
	os.Exit(exitCode)
}

// --- Test Helper Functions ---

func doRequest(method, path, body, bearer string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "127.0.0.1:5000"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	testApp.Router.ServeHTTP(rr, req)
	return rr
}

func cleanupUser(t *testing.T, email string) {
	var id string
	if err := testApp.DB.QueryRow("SELECT id FROM users WHERE email = $1", email).Scan(&id); err == nil {
		_, err = testApp.DB.Exec("DELETE FROM refresh_tokens WHERE user_id = $1", id)
		assert.NoError(t, err)
	}
	_, err := testApp.DB.Exec("DELETE FROM users WHERE email = $1", email)
	assert.NoError(t, err, "Failed to clean up user")
}

func registerForTest(t *testing.T, username, email, password string) model.AuthResponse {
	body := fmt.Sprintf(`{"username":"%s","display_name":"%s","email":"%s","password":"%s"}`, username, username, email, password)
	rr := doRequest(http.MethodPost, "/api/account/register", body, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp model.AuthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

// --- Test Suites ---

func TestHealthCheck_Integration(t *testing.T) {
	rr := doRequest(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"API is healthy and running"}`, rr.Body.String())
}

func TestRegisterAndLogin_Integration(t *testing.T) {
	email := "sketcher@draw.test"
	defer cleanupUser(t, email)

	registered := registerForTest(t, "sketcher", email, "password123")
	assert.NotEmpty(t, registered.Tokens.AccessToken)
	assert.NotEmpty(t, registered.Tokens.RefreshToken)

	t.Run("duplicate email", func(t *testing.T) {
		body := fmt.Sprintf(`{"username":"other","display_name":"Other","email":"%s","password":"password123"}`, email)
		rr := doRequest(http.MethodPost, "/api/account/register", body, "")
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("successful login", func(t *testing.T) {
		rr := doRequest(http.MethodPost, "/api/account/login", fmt.Sprintf(`{"email":"%s","password":"password123"}`, email), "")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := doRequest(http.MethodPost, "/api/account/login", fmt.Sprintf(`{"email":"%s","password":"wrongpassword"}`, email), "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestTokenRotation_Integration(t *testing.T) {
	email := "rotator@draw.test"
	defer cleanupUser(t, email)
	registered := registerForTest(t, "rotator", email, "password123")
	old := registered.Tokens.RefreshToken

	rr := doRequest(http.MethodPost, "/api/token/refresh", `{"refresh_token":"`+old+`"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var pair model.TokenPair
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &pair))

	var replacedBy sql.NullString
	var revokedBy sql.NullString
	err := testApp.DB.QueryRow("SELECT replaced_by_token, revoked_by FROM refresh_tokens WHERE token = $1", old).
		Scan(&replacedBy, &revokedBy)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, replacedBy.String)
	assert.Equal(t, "ip:127.0.0.1", revokedBy.String)

	rr = doRequest(http.MethodPost, "/api/token/refresh", `{"refresh_token":"`+old+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doRequest(http.MethodPost, "/api/token/revoke", `{"refresh_token":"`+pair.RefreshToken+`"}`, pair.AccessToken)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(http.MethodPost, "/api/token/revoke", `{"refresh_token":"`+pair.RefreshToken+`"}`, pair.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteAccount_Integration(t *testing.T) {
	email := "leaver@draw.test"
	defer cleanupUser(t, email)
	registered := registerForTest(t, "leaver", email, "password123")

	rr := doRequest(http.MethodDelete, "/api/account", `{"password":"password123"}`, registered.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var revoked bool
	var revokedBy sql.NullString
	err := testApp.DB.QueryRow("SELECT is_revoked, revoked_by FROM refresh_tokens WHERE token = $1", registered.Tokens.RefreshToken).
		Scan(&revoked, &revokedBy)
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, "system", revokedBy.String)

	rr = doRequest(http.MethodPost, "/api/token/refresh", `{"refresh_token":"`+registered.Tokens.RefreshToken+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
