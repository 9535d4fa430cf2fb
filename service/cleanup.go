package service

import (
	"context"
	"go-draw-api/logger"
	"go-draw-api/metrics"
	"time"
)

// ExpiredTokenCleaner deletes expired refresh tokens.
type ExpiredTokenCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

const defaultSweepTimeout = 5 * time.Minute

// CleanupScheduler runs the expired token sweep on a fixed interval.
type CleanupScheduler struct {
	cleaner      ExpiredTokenCleaner
	interval     time.Duration
	sweepTimeout time.Duration
	metrics      *metrics.TokenMetrics
}

func NewCleanupScheduler(cleaner ExpiredTokenCleaner, interval time.Duration, m *metrics.TokenMetrics) *CleanupScheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &CleanupScheduler{
		cleaner:      cleaner,
		interval:     interval,
		sweepTimeout: min(interval, defaultSweepTimeout),
		metrics:      m,
	}
}

// WithSweepTimeout bounds how long a single sweep may take.
func (c *CleanupScheduler) WithSweepTimeout(d time.Duration) *CleanupScheduler {
	if d > 0 {
		c.sweepTimeout = d
	}
	return c
}

// Run sweeps once immediately and then every interval until ctx is done.
// A failed sweep is logged and the loop carries on.
func (c *CleanupScheduler) Run(ctx context.Context) {
	log := logger.Log.WithField("interval", c.interval.String())
	log.Info("Token cleanup scheduler started")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.sweep(ctx)

		select {
		case <-ctx.Done():
			log.Info("Token cleanup scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (c *CleanupScheduler) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.sweepTimeout)
	defer cancel()

	n, err := c.cleaner.CleanupExpired(ctx)
	if err != nil {
		c.metrics.CleanupFailed()
		logger.Log.WithError(err).Error("Error occurred while cleaning up expired tokens")
		return
	}
	logger.Log.WithField("deleted", n).Info("Expired refresh tokens cleaned up")
}
