// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database location, rate limiting, observability and the
// credentials of the three outbound integrations (Clio, Gmail, OpenAI).
//
// A single Config value is built once at startup and passed by value into
// the constructors that need it. Business logic never reads the process
// environment directly.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/legal-billing-backend/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// ClioConfig holds the OAuth client registration and API location of the
// billing system.
type ClioConfig struct {
	ClientID     string        // CLIO_CLIENT_ID
	ClientSecret string        // CLIO_CLIENT_SECRET
	RedirectURI  string        // CLIO_REDIRECT_URI
	BaseURL      string        // CLIO_BASE_URL (e.g. "https://app.clio.com")
	Timeout      time.Duration // CLIO_TIMEOUT, bounds every outbound call
}

// GoogleConfig holds the Gmail OAuth settings.
type GoogleConfig struct {
	ClientSecretFile string   // GOOGLE_CLIENT_SECRET_FILE
	RedirectURI      string   // GOOGLE_REDIRECT_URI (overrides the file)
	Scopes           []string // GOOGLE_SCOPES, comma separated
}

// OpenAIConfig holds the summarization model settings.
type OpenAIConfig struct {
	APIKey  string        // OPENAI_API_KEY
	Model   string        // OPENAI_MODEL
	BaseURL string        // OPENAI_BASE_URL
	Timeout time.Duration // OPENAI_TIMEOUT
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 60s (push runs are sequential)
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DatabaseURL string // sqlite path or postgres:// URL
	FrontendURL string // where OAuth callbacks redirect to

	// Rate limiting
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Sync
	SyncLockTTL time.Duration // upper bound on a single push pass

	// Integrations
	Clio   ClioConfig
	Google GoogleConfig
	OpenAI OpenAIConfig

	// Observability
	OTEL OTELConfig
}

// Load reads configuration from environment variables, applies defaults and
// normalization, and validates the result. Unparseable values are reported
// along with failed checks in a single joined error.
func Load() (Config, error) {
	e := &envReader{}
	cfg := Config{
		Port:              e.str("PORT", "8000"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.bool("LOG_PRETTY", false),
		SwaggerEnabled: e.bool("SWAGGER_ENABLED", e.bool("DEBUG", false)),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api")),

		DatabaseURL: e.str("DATABASE_URL", e.str("DB_PATH", "legal_billing.db")),
		FrontendURL: strings.TrimRight(e.str("FRONTEND_URL", "/"), "/"),

		RateRPS:   e.float("RATE_RPS", 5),
		RateBurst: e.int("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: splitCSV(e.str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),
		SyncLockTTL:    e.dur("SYNC_LOCK_TTL", 10*time.Minute),

		Clio: ClioConfig{
			ClientID:     e.str("CLIO_CLIENT_ID", ""),
			ClientSecret: e.str("CLIO_CLIENT_SECRET", ""),
			RedirectURI:  e.str("CLIO_REDIRECT_URI", "http://localhost:8000/callback"),
			BaseURL:      strings.TrimRight(e.str("CLIO_BASE_URL", "https://app.clio.com"), "/"),
			Timeout:      e.dur("CLIO_TIMEOUT", 15*time.Second),
		},
		Google: GoogleConfig{
			ClientSecretFile: e.str("GOOGLE_CLIENT_SECRET_FILE", "client_secret.json"),
			RedirectURI:      e.str("GOOGLE_REDIRECT_URI", ""),
			Scopes:           splitCSV(e.str("GOOGLE_SCOPES", "https://www.googleapis.com/auth/gmail.readonly")),
		},
		OpenAI: OpenAIConfig{
			APIKey:  e.str("OPENAI_API_KEY", ""),
			Model:   e.str("OPENAI_MODEL", "gpt-3.5-turbo"),
			BaseURL: e.str("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Timeout: e.dur("OPENAI_TIMEOUT", 30*time.Second),
		},

		OTEL: OTELConfig{
			Enabled:     e.bool("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "legal-billing-backend"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	return cfg, errors.Join(append(e.errs, cfg.validate()...)...)
}

func (c Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"))
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(strings.TrimSpace(c.DatabaseURL) != "", "DATABASE_URL must not be empty")
	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.SyncLockTTL > 0, "SYNC_LOCK_TTL must be > 0")
	check(c.Clio.Timeout > 0 && c.OpenAI.Timeout > 0, "CLIO_TIMEOUT and OPENAI_TIMEOUT must be positive durations")
	u, err := url.Parse(c.Clio.BaseURL)
	check(err == nil && u.Scheme != "" && u.Host != "", "CLIO_BASE_URL must be an absolute URL")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errs
}

// envReader reads typed variables. An unset or empty variable yields the
// default; a malformed one yields the default and records an error.
type envReader struct {
	errs []error
}

func (e *envReader) lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	return v, ok && v != ""
}

func (e *envReader) fail(k, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", k, v, err))
}

func (e *envReader) str(k, def string) string {
	if v, ok := e.lookup(k); ok {
		return v
	}
	return def
}

func (e *envReader) float(k string, def float64) float64 {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return f
}

func (e *envReader) int(k string, def int) int {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return i
}

func (e *envReader) bool(k string, def bool) bool {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	if sysutil.IsTruthy(v) {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no", "n", "off":
		return false
	}
	e.fail(k, v, errors.New("not a boolean"))
	return def
}

func (e *envReader) dur(k string, def time.Duration) time.Duration {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return d
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns p with one leading slash and no trailing slash,
// or "/" when p is blank.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
