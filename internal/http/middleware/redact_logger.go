// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access log. Request and response
// bodies are never logged: they carry client email text and summaries.
// What is logged (query string, headers) is scrubbed first:
//   - OAuth callback parameters (code, state, tokens) are masked whole
//   - credential headers are masked whole
//   - email addresses, phone numbers and UUIDs are replaced by placeholders
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const redacted = "[REDACTED]"

// RedactOptions configures additional scrub behavior for RedactingLogger.
//
// MaskHeaders names extra headers whose values are replaced with
// "[REDACTED]". Matching is case-insensitive and merged with the built-in
// set (Authorization, Cookie, Set-Cookie).
type RedactOptions struct {
	MaskHeaders []string
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Digits only, so hex runs inside ids are left to uuidRE.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// oauthParams are query parameters masked whole on every route.
var oauthParams = map[string]struct{}{
	"code":          {},
	"state":         {},
	"access_token":  {},
	"refresh_token": {},
	"id_token":      {},
}

type redactor struct {
	maskHeaders map[string]struct{}
}

func newRedactor(extra []string) *redactor {
	r := &redactor{maskHeaders: map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}}
	for _, h := range extra {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			r.maskHeaders[h] = struct{}{}
		}
	}
	return r
}

// text replaces identifiers in s. UUIDs go first: the phone pattern would
// otherwise match their digit groups.
func (r *redactor) text(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

func (r *redactor) query(raw string) string {
	if raw == "" {
		return raw
	}
	parts := strings.Split(raw, "&")
	for i, p := range parts {
		name, _, hasValue := strings.Cut(p, "=")
		if _, ok := oauthParams[strings.ToLower(name)]; ok && hasValue {
			parts[i] = name + "=" + redacted
		}
	}
	return r.text(strings.Join(parts, "&"))
}

func (r *redactor) headers(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.maskHeaders[strings.ToLower(k)]; ok {
			out[k] = redacted
			continue
		}
		out[k] = r.text(strings.Join(vv, ", "))
	}
	return out
}

// RedactingLogger attaches the request-scoped logger (see LoggerFrom) and
// writes one access line per request: info below 400, warn for 4xx, error
// for 5xx. Push retries are marked with idempotent_replay.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	rd := newRedactor(opts.MaskHeaders)

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		query := rd.query(c.Request.URL.RawQuery)
		headers := rd.headers(c.Request.Header)
		l := attachLogger(c, path)

		c.Next()

		status := c.Writer.Status()
		ev := l.Info()
		switch {
		case status >= 500:
			ev = l.Error()
		case status >= 400:
			ev = l.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		if IsReplay(c) {
			ev = ev.Bool("idempotent_replay", true)
		}
		ev.
			Str("query", query).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
