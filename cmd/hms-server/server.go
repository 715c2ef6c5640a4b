package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medicorex/hms/internal/config"
	"github.com/medicorex/hms/internal/domain/billing"
	"github.com/medicorex/hms/internal/domain/doctor"
	"github.com/medicorex/hms/internal/domain/identity"
	"github.com/medicorex/hms/internal/domain/patient"
	"github.com/medicorex/hms/internal/domain/scheduling"
	"github.com/medicorex/hms/internal/platform/audit"
	"github.com/medicorex/hms/internal/platform/auth"
	"github.com/medicorex/hms/internal/platform/db"
	"github.com/medicorex/hms/internal/platform/idgen"
	"github.com/medicorex/hms/internal/platform/middleware"
	"github.com/medicorex/hms/internal/platform/reporting"
	"github.com/medicorex/hms/internal/platform/rules"
)

// services is every domain service wired against one pool.
type services struct {
	tx         *db.TxRunner
	identity   *identity.Service
	patients   *patient.Service
	doctors    *doctor.Service
	scheduling *scheduling.Service
	billing    *billing.Service
	audit      *audit.Service
	reporting  *reporting.Service
}

func newServices(cfg *config.Config, pool *pgxpool.Pool, sessions *auth.Sessions,
	revoked *auth.Revocations, logger zerolog.Logger) (*services, error) {
	mode, err := cfg.AuditMode()
	if err != nil {
		return nil, err
	}
	tx := txRunner(pool, cfg, logger)
	ids := idgen.NewPGGenerator()
	engine := rules.NewEngine(logger)
	rec := audit.NewPGRecorder(mode, logger)

	return &services{
		tx:         tx,
		identity:   identity.NewService(tx, identity.NewRepoPG(pool), ids, sessions, logger, identity.WithRevocations(revoked)),
		patients:   patient.NewService(tx, patient.NewRepoPG(pool), ids, engine, rec),
		doctors:    doctor.NewService(tx, doctor.NewRepoPG(pool), ids, engine, rec),
		scheduling: scheduling.NewService(tx, scheduling.NewRepoPG(pool), ids, engine, rec),
		billing:    billing.NewService(tx, billing.NewRepoPG(pool), ids, engine, rec),
		audit:      audit.NewService(audit.NewRepoPG(pool)),
		reporting:  reporting.NewService(tx, pool),
	}, nil
}

// newServer builds the echo instance with its middleware chain and routes.
func newServer(cfg *config.Config, pool *pgxpool.Pool, svcs *services, sessions *auth.Sessions,
	revoked *auth.Revocations, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(sessions, revoked, logger))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))

	api := e.Group("/api/v1")
	identity.NewHandler(svcs.identity, revoked).RegisterRoutes(api, middleware.RateLimit(middleware.LoginRateLimitConfig()))
	patient.NewHandler(svcs.patients).RegisterRoutes(api)
	doctor.NewHandler(svcs.doctors).RegisterRoutes(api)
	scheduling.NewHandler(svcs.scheduling).RegisterRoutes(api)
	billing.NewHandler(svcs.billing).RegisterRoutes(api)
	audit.NewHandler(svcs.audit).RegisterRoutes(api)
	reporting.NewHandler(svcs.reporting).RegisterRoutes(api)

	return e
}

func runServer(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		fallback := newLogger(nil)
		fallback.Error().Err(err).Msg("invalid configuration")
		return err
	}
	logger := newLogger(cfg)

	if cfg.IsDev() {
		logger.Warn().Msg("running in DEVELOPMENT mode: every request is served as an anonymous admin")
	}

	secret, generated, err := resolveSessionSecret(cfg.SessionSecret)
	if err != nil {
		return err
	}
	if generated {
		logger.Warn().Msg("SESSION_SECRET not set, using a random key: sessions will not survive a restart")
	}
	sessions, err := auth.NewSessions(secret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	revoked := auth.NewRevocations(auth.WithSessionTTL(sessions.TTL()))
	defer revoked.Close()

	pool, err := connect(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	svcs, err := newServices(cfg, pool, sessions, revoked, logger)
	if err != nil {
		return err
	}
	e := newServer(cfg, pool, svcs, sessions, revoked, logger)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
