package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/legal-billing-backend/internal/app"
	"github.com/tbourn/legal-billing-backend/internal/config"
	httpapi "github.com/tbourn/legal-billing-backend/internal/http"
	"github.com/tbourn/legal-billing-backend/internal/observability"
	"github.com/tbourn/legal-billing-backend/internal/repo"
	"github.com/tbourn/legal-billing-backend/internal/sysutil"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(env *cliEnv) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API used by the review frontend and the browser extension.

The schema is migrated on start unless SKIP_MIGRATE is set. SIGINT or
SIGTERM drains in-flight requests before exiting; a push pass in progress
keeps its lease until the lease TTL expires if it is cut short.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, env.cfg, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default \":$PORT\")")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, addr string) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel: shutdown")
		}
	}()

	db, closeDB, err := openDB(cfg, !sysutil.IsTruthy(os.Getenv("SKIP_MIGRATE")))
	if err != nil {
		return err
	}
	defer closeDB()

	svcs, err := app.New(cfg, db)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, svcs, cfg, version)

	srv := &http.Server{
		Addr:              sysutil.FirstNonEmpty(addr, ":"+cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("http: shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	return <-errCh
}

// openDB opens the configured database and, when migrate is set, brings the
// schema up to date. The returned func closes the pool.
func openDB(cfg config.Config, migrate bool) (*gorm.DB, func(), error) {
	db, err := repo.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if migrate {
		if err := repo.AutoMigrate(db); err != nil {
			closeDB()
			return nil, nil, err
		}
	}
	return db, closeDB, nil
}
