// Package metrics holds the prometheus collectors for the token lifecycle.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "drawapi"

// Reasons a refresh request is rejected.
const (
	ReasonNotFound = "not_found"
	ReasonInactive = "inactive"
)

// TokenMetrics is safe to use as a nil pointer; every method is then a no-op.
type TokenMetrics struct {
	issued          prometheus.Counter
	rotated         prometheus.Counter
	refreshRejected *prometheus.CounterVec
	revoked         *prometheus.CounterVec
	cleanupDeleted  prometheus.Counter
	cleanupFailures prometheus.Counter
	rateLimited     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *TokenMetrics {
	m := &TokenMetrics{
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tokens_issued_total",
			Help:      "Refresh tokens issued at login or registration.",
		}),
		rotated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tokens_rotated_total",
			Help:      "Successful refresh token rotations.",
		}),
		refreshRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_rejected_total",
			Help:      "Refresh attempts rejected, by reason.",
		}, []string{"reason"}),
		revoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tokens_revoked_total",
			Help:      "Refresh tokens revoked, by scope.",
		}, []string{"scope"}),
		cleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tokens_cleaned_total",
			Help:      "Expired refresh tokens removed by the cleanup sweep.",
		}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_failures_total",
			Help:      "Cleanup sweeps that failed.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limit policy.",
		}, []string{"policy"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		m.issued, m.rotated, m.refreshRejected, m.revoked,
		m.cleanupDeleted, m.cleanupFailures, m.rateLimited,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *TokenMetrics) TokenIssued() {
	if m == nil {
		return
	}
	m.issued.Inc()
}

func (m *TokenMetrics) TokenRotated() {
	if m == nil {
		return
	}
	m.rotated.Inc()
}

func (m *TokenMetrics) RefreshRejected(reason string) {
	if m == nil {
		return
	}
	m.refreshRejected.WithLabelValues(reason).Inc()
}

func (m *TokenMetrics) TokensRevoked(scope string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.revoked.WithLabelValues(scope).Add(float64(n))
}

func (m *TokenMetrics) CleanupDeleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.cleanupDeleted.Add(float64(n))
}

func (m *TokenMetrics) CleanupFailed() {
	if m == nil {
		return
	}
	m.cleanupFailures.Inc()
}

func (m *TokenMetrics) RateLimited(policy string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(policy).Inc()
}

func (m *TokenMetrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
