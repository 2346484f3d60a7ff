package governance

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiterConfig defines per-route rate limit settings.
type RateLimiterConfig struct {
	RequestsPerSecond int
	BurstSize         int
}

// RateLimiter implements token bucket rate limiting per route. Routes without
// configuration are never limited.
type RateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*tokenBucket
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter with the provided configuration.
func NewRateLimiter(config map[string]RateLimiterConfig) *RateLimiter {
	return newRateLimiter(config, time.Now)
}

func newRateLimiter(config map[string]RateLimiterConfig, now func() time.Time) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*tokenBucket, len(config)),
		now:     now,
	}
	for routeID, cfg := range config {
		if cfg.RequestsPerSecond <= 0 {
			continue
		}
		rl.buckets[routeID] = newTokenBucket(cfg.RequestsPerSecond, cfg.BurstSize, now())
	}
	return rl
}

// Allow checks if a request for the given route should be allowed.
// Returns true if allowed, false if rate limit exceeded.
func (rl *RateLimiter) Allow(routeID string) bool {
	rl.mu.RLock()
	bucket, exists := rl.buckets[routeID]
	rl.mu.RUnlock()

	if !exists {
		return true
	}

	return bucket.take(rl.now())
}

// Stats returns the current state of a route's bucket.
func (rl *RateLimiter) Stats(routeID string) (RateLimitStats, bool) {
	rl.mu.RLock()
	bucket, exists := rl.buckets[routeID]
	rl.mu.RUnlock()

	if !exists {
		return RateLimitStats{}, false
	}
	return bucket.stats(rl.now()), true
}

// RateLimitStats exposes current state of a rate limit bucket.
type RateLimitStats struct {
	Limit     int           `json:"limit"`
	BurstSize int           `json:"burstSize"`
	Available float64       `json:"available"`
	RetryIn   time.Duration `json:"retryIn"`
}

// tokenBucket implements a token bucket algorithm for rate limiting.
type tokenBucket struct {
	mu         sync.Mutex
	rate       float64   // tokens per second
	capacity   float64   // maximum burst size
	tokens     float64   // current available tokens
	lastRefill time.Time // last time tokens were refilled
}

func newTokenBucket(rps, burstSize int, now time.Time) *tokenBucket {
	if burstSize <= 0 {
		burstSize = rps
	}

	return &tokenBucket{
		rate:       float64(rps),
		capacity:   float64(burstSize),
		tokens:     float64(burstSize),
		lastRefill: now,
	}
}

// take attempts to consume one token from the bucket.
func (tb *tokenBucket) take(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}

	return false
}

// refill adds tokens to the bucket based on elapsed time.
func (tb *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	tb.tokens = math.Min(tb.capacity, tb.tokens+elapsed*tb.rate)
	tb.lastRefill = now
}

func (tb *tokenBucket) stats(now time.Time) RateLimitStats {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)

	var retry time.Duration
	if tb.tokens < 1.0 {
		retry = time.Duration((1.0 - tb.tokens) / tb.rate * float64(time.Second))
	}

	return RateLimitStats{
		Limit:     int(tb.rate),
		BurstSize: int(tb.capacity),
		Available: tb.tokens,
		RetryIn:   retry,
	}
}

// WriteRateLimitHeaders adds rate limit status headers to the response.
func WriteRateLimitHeaders(w http.ResponseWriter, stats RateLimitStats) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(stats.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(stats.Available)))
	if stats.RetryIn > 0 {
		seconds := int(math.Ceil(stats.RetryIn.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
}
