// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the correlation ID, the request-scoped logger and the
// panic recovery used by every route:
//
//   - RequestID() propagates a caller-supplied X-Request-ID when it looks
//     sane and generates a UUID otherwise.
//   - LoggerFrom() returns the logger attached by RedactingLogger, carrying
//     request_id, method, path and, when tracing is on, trace_id.
//   - Recovery() turns a panic into the standard JSON 500 envelope.
//
// Order: RequestID, RedactingLogger, Recovery, so a panic is logged with its
// correlation ID.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// loggerKey holds the request-scoped *zerolog.Logger.
	loggerKey = "logger"
)

// Incoming IDs end up in log lines and response headers.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._\-]{1,128}$`)

// RequestID attaches (or propagates) a correlation identifier per request.
// The ID is echoed in the X-Request-ID response header and stored in the
// Gin context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !requestIDPattern.MatchString(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// requestID returns the ID set by RequestID, or "" outside of it.
func requestID(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return c.Writer.Header().Get(requestIDHeader)
}

// attachLogger builds the request-scoped logger and stores it on c.
func attachLogger(c *gin.Context, path string) *zerolog.Logger {
	lc := log.With().
		Str("request_id", requestID(c)).
		Str("method", c.Request.Method).
		Str("path", path)
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		lc = lc.Str("trace_id", sc.TraceID().String())
	}
	l := lc.Logger()
	c.Set(loggerKey, &l)
	return &l
}

// Recovery intercepts panics, logs a stack trace, and answers with the
// standard error envelope unless a response was already started.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": requestID(c),
				"code":       CodeInternal,
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger, or the global logger
// when none was attached. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}
