// File: app/app.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"go-draw-api/common"
	"go-draw-api/config"
	"go-draw-api/db"
	"go-draw-api/handler"
	"go-draw-api/logger"
	"go-draw-api/metrics"
	"go-draw-api/repository"
	"go-draw-api/router"
	"go-draw-api/service"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// App is the fully wired server. Redis is nil when neither the token store
// nor rate limiting needs it.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Redis   *redis.Client
	Router  http.Handler
	Tokens  *service.TokenService
	Cleanup *service.CleanupScheduler
}

// needsRedis reports whether cfg requires a Redis connection.
func needsRedis(cfg *config.Config) bool {
	return cfg.TokenStore.Driver == config.TokenStoreRedis || cfg.RateLimit.Enabled
}

// New wires every layer on top of already opened connections.
// An unusable signing key configuration is returned as an error.
func New(cfg *config.Config, database *sql.DB, rdb *redis.Client, reg *prometheus.Registry) (*App, error) {
	keys, err := service.NewSigningKeyProvider(cfg.JWT)
	if err != nil {
		return nil, err
	}

	var m *metrics.TokenMetrics
	if reg != nil {
		m = metrics.New(reg)
	}

	// Layers for tokens
	var store repository.ITokenRepository
	switch cfg.TokenStore.Driver {
	case config.TokenStoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("%w: token_store.driver is redis but no redis client was configured", common.ErrConfiguration)
		}
		store = repository.NewRedisTokenRepository(rdb, cfg.Redis.KeyPrefix)
	default:
		store = repository.NewTokenRepository(database)
	}

	// Layers for users
	userRepo := repository.NewUserRepository(database)
	userService := service.NewUserService(userRepo)

	codec := service.NewAccessTokenCodec(keys, time.Now)
	tokenService := service.NewTokenService(store, userService, codec, keys, m)
	authService := service.NewAuthService(userRepo, userService, tokenService)

	deps := router.Deps{
		Users:  handler.NewUserHandler(authService),
		Tokens: handler.NewTokenHandler(tokenService, authService),
		Auth:   codec,
		RefreshPolicy: service.RateLimitPolicy{
			Name: "refresh", Limit: cfg.RateLimit.RefreshPerMinute, Window: time.Minute,
		},
		AuthPolicy: service.RateLimitPolicy{
			Name: "auth", Limit: cfg.RateLimit.AuthPerMinute, Window: time.Minute,
		},
		Metrics: m,
	}
	if reg != nil {
		deps.Gatherer = reg
	}
	if cfg.RateLimit.Enabled {
		if rdb != nil {
			deps.Limiter = service.NewRateLimiter(rdb, cfg.Redis.KeyPrefix)
		} else {
			logger.Log.Warn("Rate limiting is enabled but Redis is not configured; requests will not be limited")
		}
	}

	return &App{
		Config:  cfg,
		DB:      database,
		Redis:   rdb,
		Router:  router.NewRouter(deps),
		Tokens:  tokenService,
		Cleanup: service.NewCleanupScheduler(tokenService, cfg.Cleanup.Interval, m),
	}, nil
}

func Run() {
	config.LoadConfig(".")
	logger.Init()
	logger.Log.Info("Logger initialized")
	logger.Log.Info("Configuration loaded successfully")
	cfg := &config.AppConfig

	// Fail before touching any store if tokens cannot be signed.
	if _, err := service.NewSigningKeyProvider(cfg.JWT); err != nil {
		logger.Log.Fatalf("Invalid JWT configuration: %v", err)
	}

	database, err := db.Connect(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		logger.Log.Fatalf("Error running database migrations: %v", err)
	}

	var rdb *redis.Client
	if needsRedis(cfg) {
		rdb, err = db.ConnectRedis(cfg.Redis)
		if err != nil {
			logger.Log.Fatalf("Error connecting to Redis: %v", err)
		}
		defer rdb.Close()
	}

	a, err := New(cfg, database, rdb, metrics.NewRegistry())
	if err != nil {
		logger.Log.Fatalf("Error wiring application: %v", err)
	}
	logger.Log.WithField("token_store", cfg.TokenStore.Driver).Info("Application wired")

	// --- Background cleanup ---
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Cleanup.Run(cleanupCtx)
	}()

	// --- Start the Server with Graceful Shutdown ---
	port := cfg.Server.Port
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	stopCleanup()
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Log.Info("Server exited properly")
}
