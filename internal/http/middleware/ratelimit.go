// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file throttles callers with one token bucket per identity. Buckets
// live in process memory and idle ones are swept every sweepEvery lookups.
// The limit protects the Gmail, OpenAI and Clio quotas behind the API; it is
// not an authorization mechanism.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity its bucket is keyed by.
type keyFunc func(*gin.Context) string

// extensionOriginPrefix marks requests issued by the companion browser
// extension.
const extensionOriginPrefix = "chrome-extension://"

const (
	sweepEvery    = 5000
	defaultIdle   = 10 * time.Minute
	minRetryAfter = 1 // seconds
)

// KeyByExtensionOrIP buckets browser-extension traffic by extension id (from
// the Origin header) and everything else by client IP, as "ext:<id>" and
// "ip:<addr>".
func KeyByExtensionOrIP() keyFunc {
	return func(c *gin.Context) string {
		if id, ok := strings.CutPrefix(c.GetHeader("Origin"), extensionOriginPrefix); ok && id != "" {
			return "ext:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token-bucket limiter. It is safe for concurrent
// use.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	key     keyFunc
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	lookups int
}

// NewRateLimiter refills rps tokens per second up to burst, keyed by keyFn.
// A burst <= 0 is treated as 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(rps),
		burst:   max(burst, 1),
		key:     keyFn,
		idleTTL: defaultIdle,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// limiterFor returns the bucket for key, creating it if needed. The sweep
// runs before the lookup so a stale bucket is replaced rather than revived.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.lookups++; rl.lookups >= sweepEvery {
		rl.sweep(now)
		rl.lookups = 0
	}
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// sweep drops buckets idle for at least idleTTL. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for k, b := range rl.buckets {
		if now.Sub(b.lastSeen) >= rl.idleTTL {
			delete(rl.buckets, k)
		}
	}
}

// IsRateBypass reports whether IdempotencyValidator exempted the request
// from limiting because it replays a recorded push.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Get(ctxKeyRateBypass)
	v, _ := b.(bool)
	return v
}

// retryAfter is the whole number of seconds until the bucket can admit one
// more request, never less than one.
func retryAfter(lim *rate.Limiter, now time.Time) int {
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return minRetryAfter
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return max(int(math.Ceil(d.Seconds())), minRetryAfter)
}

// Handler enforces the limit. A rejected request gets 429 with Retry-After
// and the standard error envelope (code rate_limited).
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.limiterFor(rl.key(c))
		now := rl.now()
		if lim.AllowN(now, 1) {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfter(lim, now)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": requestID(c),
			"code":       CodeRateLimited,
			"message":    "rate limit exceeded",
		})
	}
}
