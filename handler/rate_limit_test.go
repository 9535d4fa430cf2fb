package handler

import (
	"go-draw-api/metrics"
	"go-draw-api/service"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newLimitedHandler(t *testing.T, limit int) (http.Handler, *miniredis.Miniredis, *prometheus.Registry) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	policy := service.RateLimitPolicy{Name: "refresh", Limit: limit, Window: time.Minute}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return RateLimit(service.NewRateLimiter(rdb, "test"), policy, m)(ok), mr, reg
}

func TestRateLimit_BlocksPastLimit(t *testing.T) {
	h, mr, reg := newLimitedHandler(t, 2)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, newRequest(http.MethodPost, "/api/token/refresh", ""))
		assert.Equal(t, http.StatusOK, rr.Code)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newRequest(http.MethodPost, "/api/token/refresh", ""))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP drawapi_rate_limited_total Requests rejected by a rate limit policy.
# TYPE drawapi_rate_limited_total counter
drawapi_rate_limited_total{policy="refresh"} 1
`), "drawapi_rate_limited_total"))

	// Another client has its own window.
	other := newRequest(http.MethodPost, "/api/token/refresh", "")
	other.RemoteAddr = "198.51.100.7:1000"
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, other)
	assert.Equal(t, http.StatusOK, rr.Code)

	mr.FastForward(time.Minute)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, newRequest(http.MethodPost, "/api/token/refresh", ""))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	h, mr, _ := newLimitedHandler(t, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, newRequest(http.MethodPost, "/api/token/refresh", ""))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestRateLimit_NilLimiter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RateLimit(nil, service.RateLimitPolicy{Name: "auth", Limit: 0, Window: time.Minute}, nil)(ok)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, newRequest(http.MethodPost, "/api/account/login", ""))
	assert.Equal(t, http.StatusOK, rr.Code)
}
