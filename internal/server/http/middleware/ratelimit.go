// Package middleware provides HTTP middleware components for the wahub server.
package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/brianly1003/wahub/internal/security"
	"golang.org/x/time/rate"
)

// RateLimiter defaults.
const (
	DefaultRatePerSec = 20.0
	DefaultBurst      = 40
	DefaultCleanup    = 5 * time.Minute
)

// RateLimiter is a token bucket limiter keyed by client.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu          sync.Mutex
	buckets     map[string]*bucket
	cleanupDone chan struct{}
	closeOnce   sync.Once
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiterOption is a functional option for configuring RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRate sets the sustained requests per second.
func WithRate(perSec float64) RateLimiterOption {
	return func(r *RateLimiter) {
		if perSec > 0 {
			r.limit = rate.Limit(perSec)
		}
	}
}

// WithBurst sets the bucket size.
func WithBurst(n int) RateLimiterOption {
	return func(r *RateLimiter) {
		if n > 0 {
			r.burst = n
		}
	}
}

// NewRateLimiter creates a new RateLimiter with the given options.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		limit:       rate.Limit(DefaultRatePerSec),
		burst:       DefaultBurst,
		buckets:     make(map[string]*bucket),
		cleanupDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.cleanupLoop()
	return r
}

// Allow reports whether a request from key may proceed now.
func (r *RateLimiter) Allow(key string) bool {
	return r.bucket(key).Allow()
}

// Burst returns the bucket size.
func (r *RateLimiter) Burst() int {
	return r.burst
}

func (r *RateLimiter) bucket(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[key] = b
	}
	b.lastAccess = time.Now()
	return b.limiter
}

// Close stops the cleanup goroutine.
func (r *RateLimiter) Close() {
	r.closeOnce.Do(func() { close(r.cleanupDone) })
}

func (r *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(DefaultCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-r.cleanupDone:
			return
		case <-ticker.C:
			r.cleanup(time.Now().Add(-DefaultCleanup))
		}
	}
}

// cleanup removes buckets not used since cutoff.
func (r *RateLimiter) cleanup(cutoff time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, b := range r.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(r.buckets, key)
		}
	}
}

// KeyExtractor is a function that extracts a rate limit key from a request.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor uses the client IP of RemoteAddr. Forwarding headers are
// ignored since they can be spoofed.
func IPKeyExtractor(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ClientIPKeyExtractor keys by the client IP, honoring forwarding headers
// only from trusted proxies.
func ClientIPKeyExtractor(trusted []*net.IPNet) KeyExtractor {
	return func(r *http.Request) string {
		return security.RequestClientIP(r, trusted)
	}
}

// RateLimitMiddleware returns an HTTP middleware that applies rate limiting.
func RateLimitMiddleware(limiter *RateLimiter, keyExtractor KeyExtractor) func(http.Handler) http.Handler {
	if keyExtractor == nil {
		keyExtractor = IPKeyExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(keyExtractor(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"success":false,"message":"rate limit exceeded"}`))
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Burst()))
			next.ServeHTTP(w, r)
		})
	}
}
