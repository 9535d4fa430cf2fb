package handler

import (
	"go-draw-api/metrics"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestHealthCheck(t *testing.T) {
	rr := httptest.NewRecorder()
	HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"API is healthy and running"}`, rr.Body.String())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"203.0.113.9:443", "203.0.113.9"},
		{"[2001:db8::1]:8080", "2001:db8::1"},
		{"203.0.113.9", "203.0.113.9"},
		{"", "unknown"},
		{"not-an-ip:80", "unknown"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		assert.Equal(t, tt.want, ClientIP(req), tt.remoteAddr)
	}
}

func TestClientIP_IgnoresForwardedFor(t *testing.T) {
	req := newRequest(http.MethodGet, "/", "")
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	assert.Equal(t, testIP, ClientIP(req))
}

func TestRequestLogger_RecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := RequestLogger(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP drawapi_http_requests_total HTTP requests by method and status code.
# TYPE drawapi_http_requests_total counter
drawapi_http_requests_total{code="418",method="GET"} 1
`), "drawapi_http_requests_total"))
}
