package router

import (
	"go-draw-api/handler"
	"go-draw-api/metrics"
	"go-draw-api/service"
	"net/http"

	_ "go-draw-api/docs"

	"github.com/prometheus/client_golang/prometheus"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// Deps is everything the router mounts. Limiter may be nil to disable rate limiting.
type Deps struct {
	Users         *handler.UserHandler
	Tokens        *handler.TokenHandler
	Auth          handler.AccessTokenValidator
	Limiter       handler.Limiter
	RefreshPolicy service.RateLimitPolicy
	AuthPolicy    service.RateLimitPolicy
	Metrics       *metrics.TokenMetrics
	Gatherer      prometheus.Gatherer
}

func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	protected := handler.AuthMiddleware(d.Auth)
	refreshLimit := handler.RateLimit(d.Limiter, d.RefreshPolicy, d.Metrics)
	authLimit := handler.RateLimit(d.Limiter, d.AuthPolicy, d.Metrics)

	mux.HandleFunc("GET /health", handler.HealthCheck)
	if d.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(d.Gatherer))
	}
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	// Account
	mux.Handle("POST /api/account/register", authLimit(handler.ErrorHandlingMiddleware(d.Users.Register)))
	mux.Handle("POST /api/account/login", authLimit(handler.ErrorHandlingMiddleware(d.Users.Login)))
	mux.Handle("DELETE /api/account", protected(handler.ErrorHandlingMiddleware(d.Users.DeleteAccount)))

	// Token
	mux.Handle("POST /api/token/refresh", refreshLimit(handler.ErrorHandlingMiddleware(d.Tokens.Refresh)))
	mux.Handle("POST /api/token/inspect", refreshLimit(handler.ErrorHandlingMiddleware(d.Tokens.Inspect)))
	mux.Handle("POST /api/token/revoke", protected(handler.ErrorHandlingMiddleware(d.Tokens.Revoke)))
	mux.Handle("POST /api/token/revoke-all", protected(handler.ErrorHandlingMiddleware(d.Tokens.RevokeAll)))
	mux.Handle("GET /api/token/sessions", protected(handler.ErrorHandlingMiddleware(d.Tokens.Sessions)))

	return handler.RequestLogger(d.Metrics)(mux)
}
