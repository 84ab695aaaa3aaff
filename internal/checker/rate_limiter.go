package checker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces requests per supplier host. A zero delay leaves hosts
// without an override unpaced.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	delay    time.Duration
}

// NewRateLimiter creates a rate limiter allowing one request per delay per host.
func NewRateLimiter(delay time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		delay:    delay,
	}
}

// Enabled reports whether any host is paced.
func (r *RateLimiter) Enabled() bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.delay > 0 || len(r.limiters) > 0
}

// Wait blocks until a request to rawURL may proceed. It returns immediately
// when the host is not paced or the URL has no host.
func (r *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	if r == nil {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}

	limiter := r.getLimiter(strings.ToLower(u.Host))
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", u.Host, err)
	}
	return nil
}

// SetHostDelay overrides the delay for one host. A non-positive delay drops
// the override.
func (r *RateLimiter) SetHostDelay(host string, delay time.Duration) {
	host = strings.ToLower(host)

	r.mu.Lock()
	defer r.mu.Unlock()

	if delay <= 0 {
		delete(r.limiters, host)
		return
	}
	r.limiters[host] = rate.NewLimiter(rate.Every(delay), 1)
}

// getLimiter returns nil for a host that is not paced.
func (r *RateLimiter) getLimiter(host string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[host]
	r.mu.RUnlock()

	if exists {
		return limiter
	}
	if r.delay <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, exists := r.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rate.Every(r.delay), 1)
	r.limiters[host] = limiter
	return limiter
}
