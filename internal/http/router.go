// Package httpapi wires the HTTP transport (Gin) to the application
// services, middleware and route handlers.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/legal-billing-backend/docs"
	"github.com/tbourn/legal-billing-backend/internal/app"
	"github.com/tbourn/legal-billing-backend/internal/config"
	"github.com/tbourn/legal-billing-backend/internal/http/handlers"
	"github.com/tbourn/legal-billing-backend/internal/http/middleware"
)

// maxBodyBytes caps request bodies; extension captures carry full email text.
const maxBodyBytes = 2 << 20

// RegisterRoutes attaches all middleware and HTTP endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with token and PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. gzip for the email and summary lists
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per extension/IP, bypass on replay)
//  10. CORS and security headers
func RegisterRoutes(r *gin.Engine, svcs *app.Services, cfg config.Config, version string) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath
	if apiBase == "/" {
		apiBase = ""
	}

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen:       200,
			ReplayRoutes: []string{http.MethodPost + " " + apiBase + "/clio/push-entries"},
		},
		svcs.RunRecorded,
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByExtensionOrIP())
	r.Use(rl.Handler())

	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))

	// OAuth material and connection state must never be cached.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStorePrefixes: []string{
			"/callback",
			"/gmail/callback",
			apiBase + "/clio/auth",
			apiBase + "/gmail/auth-url",
			apiBase + "/status",
		},
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		docs.SwaggerInfo.Version = version
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(handlers.Deps{
		Credentials: svcs.Credentials,
		Connection:  svcs.Connection,
		Sync:        svcs.Sync,
		Mailbox:     svcs.Mailbox,
		Summaries:   svcs.Summaries,
		FrontendURL: cfg.FrontendURL,
		ServiceName: cfg.OTEL.ServiceName,
		Version:     version,
	})

	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	// OAuth redirect targets live outside the API base; they are registered
	// with the providers.
	r.GET("/callback", h.ClioCallback)
	r.GET("/gmail/callback", h.GmailCallback)

	api := groupWithPrefix(r, apiBase)
	{
		api.GET("/status", h.Status)

		clio := api.Group("/clio")
		clio.GET("/auth-url", h.ClioAuthURL)
		clio.GET("/auth", h.ClioAuthURL)
		clio.GET("/test", h.ClioTest)
		clio.POST("/push-entries", h.PushEntries)
		clio.GET("/matters", h.ClioMatters)
		clio.GET("/runs", h.ListRuns)

		gm := api.Group("/gmail")
		gm.GET("/auth-url", h.GmailAuthURL)
		gm.GET("/emails", h.FetchEmails)
		gm.GET("/emails/stored", h.StoredEmails)

		sum := api.Group("/summarizer")
		sum.POST("/generate", h.GenerateSummaries)
		sum.GET("/summaries", h.ListSummaries)
		sum.PUT("/summaries/:id", h.UpdateSummary)

		ext := api.Group("/extension")
		ext.GET("/status", h.ExtensionStatus)
		ext.POST("/capture", h.CaptureEmail)
	}
}

// corsConfig allows every origin when none are configured. Browser
// extension origins are accepted so the companion extension can call in.
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "ETag", "Content-Length", handlers.HeaderIdempotentReplay},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowBrowserExtensions = true
	c.AllowWildcard = true
	return c
}

// limitBody caps the request body size using http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
