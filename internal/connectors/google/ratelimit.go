package google

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
)

// ServiceType identifies a Google API service for rate limiting purposes.
type ServiceType string

const (
	// ServiceDrive is the Google Drive API service.
	ServiceDrive ServiceType = "drive"
	// ServiceCalendar is the Google Calendar API service.
	ServiceCalendar ServiceType = "calendar"
)

// DefaultBackoff is how long requests pause after a 429 without Retry-After.
const DefaultBackoff = 60 * time.Second

// RateLimitConfig holds rate limiting configuration for a service.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultRateLimits are conservative per-user defaults, well below
// Google's quotas.
var DefaultRateLimits = map[ServiceType]RateLimitConfig{
	ServiceDrive:    {RequestsPerSecond: 8.0, BurstSize: 10},
	ServiceCalendar: {RequestsPerSecond: 5.0, BurstSize: 10},
}

// RateLimiter is a token bucket that also pauses after rate limit errors.
type RateLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

// NewRateLimiter creates a rate limiter for the specified service.
func NewRateLimiter(service ServiceType) *RateLimiter {
	cfg, ok := DefaultRateLimits[service]
	if !ok {
		cfg = RateLimitConfig{RequestsPerSecond: 5.0, BurstSize: 10}
	}
	return NewRateLimiterWithConfig(cfg)
}

// Limiters keeps one RateLimiter per connection and service, so a pause
// recorded by Observe outlives the connector that saw the 429.
type Limiters struct {
	mu     sync.Mutex
	byConn map[string]*RateLimiter
}

// NewLimiters creates an empty limiter cache.
func NewLimiters() *Limiters {
	return &Limiters{byConn: make(map[string]*RateLimiter)}
}

// For returns the shared limiter for a connection's service. A nil
// cache hands out a fresh limiter.
func (l *Limiters) For(connectionID string, service ServiceType) *RateLimiter {
	if l == nil {
		return NewRateLimiter(service)
	}
	key := connectionID + "/" + string(service)
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.byConn[key]
	if !ok {
		r = NewRateLimiter(service)
		l.byConn[key] = r
	}
	return r
}

// NewRateLimiterWithConfig creates a rate limiter with custom configuration.
// A non-positive rate disables the token bucket.
func NewRateLimiterWithConfig(cfg RateLimitConfig) *RateLimiter {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, max(cfg.BurstSize, 1))}
}

// Wait blocks until a request can be made, honouring any backoff set by
// Observe.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if time.Now().Before(retryAt) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(retryAt)):
		}
	}
	return r.limiter.Wait(ctx)
}

// Observe records a backoff when err is a rate limit response and returns
// err unchanged.
func (r *RateLimiter) Observe(err error) error {
	if !IsRateLimited(err) {
		return err
	}
	backoff := DefaultBackoff
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if seconds, convErr := strconv.Atoi(gerr.Header.Get("Retry-After")); convErr == nil && seconds > 0 {
			backoff = time.Duration(seconds) * time.Second
		}
	}

	r.mu.Lock()
	r.retryAt = time.Now().Add(backoff)
	r.mu.Unlock()
	return err
}

// RetryAt returns the end of the current backoff, zero if none.
func (r *RateLimiter) RetryAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryAt
}

// Do waits for the limiter, runs fn and maps its error with WrapError.
func (r *RateLimiter) Do(ctx context.Context, operation string, fn func() error) error {
	if err := r.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit wait: %w", operation, err)
	}
	return WrapError(r.Observe(fn()), operation)
}
