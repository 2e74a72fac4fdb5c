package middleware

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures SecurityHeaders.
//
// NoStorePrefixes lists route prefixes whose responses must never be cached
// (OAuth URLs, callbacks, connection status). Other routes keep their own
// caching headers, e.g. the ETag on the summaries list.
type SecurityOptions struct {
	EnableHSTS      bool          // only when traffic is HTTPS end-to-end
	HSTSMaxAge      time.Duration // defaults to 180 days
	NoStorePrefixes []string
	EnablePolicy    bool // Permissions-Policy and friends
}

// exposedHeaders are made readable to the browser extension through CORS.
var exposedHeaders = []string{requestIDHeader, "ETag"}

type headerPair struct{ name, value string }

var (
	baselineHeaders = []headerPair{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	policyHeaders = []headerPair{
		{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()"},
		{"X-Permitted-Cross-Domain-Policies", "none"},
	}
	noStoreHeaders = []headerPair{
		{"Cache-Control", "no-store"},
		{"Pragma", "no-cache"},
	}
)

func setAll(h http.Header, pairs []headerPair) {
	for _, p := range pairs {
		h.Set(p.name, p.value)
	}
}

// SecurityHeaders attaches conservative security headers to every response.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	age := opt.HSTSMaxAge
	if age <= 0 {
		age = defaultHSTSMaxAge
	}
	hsts := fmt.Sprintf("max-age=%d; includeSubDomains", int64(age.Seconds()))

	prefixes := slices.DeleteFunc(slices.Clone(opt.NoStorePrefixes), func(p string) bool { return p == "" })

	return func(c *gin.Context) {
		h := c.Writer.Header()
		setAll(h, baselineHeaders)
		if opt.EnablePolicy {
			setAll(h, policyHeaders)
		}

		path := c.Request.URL.Path
		if slices.ContainsFunc(prefixes, func(p string) bool { return strings.HasPrefix(path, p) }) {
			setAll(h, noStoreHeaders)
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		h.Set("Access-Control-Expose-Headers", mergeHeaderList(h.Get("Access-Control-Expose-Headers"), exposedHeaders))

		c.Next()
	}
}

// mergeHeaderList appends names missing from the comma-separated list cur.
// Header names compare case-insensitively.
func mergeHeaderList(cur string, names []string) string {
	var out []string
	for _, f := range strings.Split(cur, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	for _, n := range names {
		if !slices.ContainsFunc(out, func(f string) bool { return strings.EqualFold(f, n) }) {
			out = append(out, n)
		}
	}
	return strings.Join(out, ", ")
}

// isHTTPS reports whether the request used TLS directly or behind a proxy
// that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
