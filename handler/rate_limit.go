package handler

import (
	"context"
	"errors"
	"go-draw-api/common"
	"go-draw-api/logger"
	"go-draw-api/metrics"
	"go-draw-api/service"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

type Limiter interface {
	Allow(ctx context.Context, policy service.RateLimitPolicy, key string) (time.Duration, error)
}

// RateLimit applies policy per client IP. When the limiter itself fails the
// request is let through.
func RateLimit(limiter Limiter, policy service.RateLimitPolicy, m *metrics.TokenMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			retryAfter, err := limiter.Allow(r.Context(), policy, ip)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, common.ErrRateLimited):
				m.RateLimited(policy.Name)
				logger.Log.WithFields(logrus.Fields{
					"policy":    policy.Name,
					"client_ip": ip,
				}).Warn("Rate limit exceeded")
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				common.NewAppError(http.StatusTooManyRequests, "Too many requests", nil).Send(w)
			default:
				logger.Log.WithError(err).WithField("policy", policy.Name).Warn("Rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
			}
		})
	}
}
