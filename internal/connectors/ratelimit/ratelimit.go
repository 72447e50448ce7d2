// Package ratelimit throttles requests made by the object storage sources.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Service identifies a storage API for rate limiting purposes.
type Service string

const (
	// ServiceGCS is the Google Cloud Storage JSON API.
	ServiceGCS Service = "gcs"
	// ServiceS3 is the Amazon S3 API.
	ServiceS3 Service = "s3"
)

// DefaultBackoff applies when a throttling response carries no retry hint.
const DefaultBackoff = 30 * time.Second

// Config holds rate limiting configuration for a service.
type Config struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// Defaults are conservative per-process limits for each service.
var Defaults = map[Service]Config{
	ServiceGCS: {RequestsPerSecond: 20, BurstSize: 20},
	ServiceS3:  {RequestsPerSecond: 50, BurstSize: 50},
}

// Limiter is a token bucket with a backoff window set by throttling
// responses.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// New creates a limiter with the default configuration for service.
func New(service Service) *Limiter {
	cfg, ok := Defaults[service]
	if !ok {
		cfg = Config{RequestsPerSecond: 10, BurstSize: 10}
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a limiter with custom configuration.
// A non-positive rate disables limiting.
func NewWithConfig(cfg Config) *Limiter {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may proceed, honouring any backoff first.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.limiter.Wait(ctx)
}

// Backoff delays subsequent requests by d, or DefaultBackoff when d <= 0.
func (l *Limiter) Backoff(d time.Duration) {
	if d <= 0 {
		d = DefaultBackoff
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if at := time.Now().Add(d); at.After(l.retryAt) {
		l.retryAt = at
	}
}

// Allow reports whether a request may proceed immediately.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if time.Now().Before(retryAt) {
		return false
	}
	return l.limiter.Allow()
}
