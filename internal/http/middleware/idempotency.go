// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header sent with a push request and
// checks whether a sync run was already recorded for it. The key is stashed
// in the Gin context so the push handler can pass it to the sync service,
// which replays the recorded run instead of pushing again:
//   - GetIdempotencyKey returns the validated key
//   - IsReplay reports that a run for the key exists
//   - a replay also bypasses rate limiting
//
// Only routes listed in IdempotencyOptions.ReplayRoutes are looked up; on
// every other route a valid key is carried along and nothing more.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's key for a push request. A retry
// with the same key returns the first run's result.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay" // bool: true when a stored replay exists
	ctxKeyRateBypass = "rate.bypass" // bool: true to skip rate limiting
)

// GetIdempotencyKey returns the key validated by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a sync run was already recorded for the request's
// key.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation. Key expiry is enforced by
// the lookup.
type IdempotencyOptions struct {
	// MaxLen caps the key length. Values <= 0 mean 200.
	MaxLen int
	// Pattern restricts the key's characters. Nil means defaultKeyPattern.
	Pattern *regexp.Regexp
	// ReplayRoutes lists the routes, as "METHOD /full/path" patterns, whose
	// keys are looked up. Empty means none.
	ReplayRoutes []string
}

// routeKey identifies the matched route the way ReplayRoutes lists it.
func routeKey(c *gin.Context) string {
	return c.Request.Method + " " + c.FullPath()
}

// defaultKeyPattern accepts header-safe token characters.
var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// IdempotencyLookup answers whether an unexpired sync run was recorded for
// key at now. A lookup error never blocks the request.
type IdempotencyLookup func(ctx context.Context, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the Idempotency-Key header when present and
// stashes it. An invalid key is answered with 400. On a replay route, when
// lookup reports a recorded run, the request is marked as replay and exempt
// from rate limiting. Serving the recorded result is left to the handler.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}
	replayable := make(map[string]bool, len(opts.ReplayRoutes))
	for _, r := range opts.ReplayRoutes {
		replayable[r] = true
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		switch {
		case key == "":
		case len(key) > maxLen || !pat.MatchString(key):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": requestID(c),
				"code":       CodeBadIdempotencyKey,
				"message":    "invalid Idempotency-Key",
			})
			return
		default:
			c.Set(ctxKeyIdemKey, key)
			if lookup == nil || c.FullPath() == "" || !replayable[routeKey(c)] {
				break
			}
			exists, err := lookup(c.Request.Context(), key, time.Now().UTC())
			if err != nil {
				LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
				break
			}
			if exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}
		c.Next()
	}
}
