package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"realworld/conduit/internal/articles"
	"realworld/conduit/internal/audit"
	"realworld/conduit/internal/auth"
	"realworld/conduit/internal/config"
	"realworld/conduit/internal/httpserver"
	"realworld/conduit/internal/mailer"
	"realworld/conduit/internal/observability"
	"realworld/conduit/internal/profiles"
)

type App struct {
	cfg    config.Config
	log    *slog.Logger
	db     *sql.DB
	server *httpserver.Server

	shutdownTracing func(context.Context) error
}

const tracingShutdownTimeout = 5 * time.Second

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = observability.NewLogger(cfg.LogLevel)
	}

	shutdownTracing, err := observability.SetupTracing(cfg.Tracing.Exporter, cfg.Tracing.ServiceName, os.Stdout)
	if err != nil {
		return nil, err
	}

	db, err := OpenDatabase(ctx, cfg.Database)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return nil, err
	}
	applied, err := Migrate(ctx, db, logger)
	if err != nil {
		_ = db.Close()
		_ = shutdownTracing(context.Background())
		return nil, err
	}
	if len(applied) > 0 {
		logger.Info("schema migrated", "applied", applied)
	}

	deps, err := buildDeps(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		_ = shutdownTracing(context.Background())
		return nil, err
	}

	return &App{
		cfg:             cfg,
		log:             logger,
		db:              db,
		server:          httpserver.New(cfg.HTTP, deps),
		shutdownTracing: shutdownTracing,
	}, nil
}

func buildDeps(cfg config.Config, db *sql.DB, logger *slog.Logger) (httpserver.Deps, error) {
	metrics := observability.NewMetrics(nil)

	sessions, err := auth.NewTokenCodec([]byte(cfg.Auth.JWTSecret), auth.AudienceSession, cfg.Auth.SessionTTL)
	if err != nil {
		return httpserver.Deps{}, fmt.Errorf("create session codec: %w", err)
	}
	resets, err := auth.NewTokenCodec([]byte(cfg.Auth.JWTSecret), auth.AudiencePasswordReset, cfg.Auth.ResetTTL)
	if err != nil {
		return httpserver.Deps{}, fmt.Errorf("create reset codec: %w", err)
	}

	smtpMailer, err := mailer.New(mailer.Config{
		From:     cfg.Mailer.Email,
		Password: cfg.Mailer.Password,
		Host:     cfg.Mailer.SMTPServer,
		Port:     cfg.Mailer.SMTPPort,
	}, logger)
	if err != nil {
		return httpserver.Deps{}, fmt.Errorf("create mailer: %w", err)
	}

	userStore, err := auth.NewPostgresUserStore(db)
	if err != nil {
		return httpserver.Deps{}, fmt.Errorf("create postgres user store: %w", err)
	}
	authService, err := auth.NewService(userStore, auth.ServiceConfig{
		Sessions: sessions,
		Resets:   resets,
		Mailer:   smtpMailer,
		Logger:   logger,
	})
	if err != nil {
		return httpserver.Deps{}, fmt.Errorf("create auth service: %w", err)
	}

	articleStore, err := articles.NewPostgresStore(db)
	if err != nil {
		return httpserver.Deps{}, fmt.Errorf("create postgres article store: %w", err)
	}
	articleService, err := articles.NewService(articleStore, metrics)
	if err != nil {
		return httpserver.Deps{}, fmt.Errorf("create article service: %w", err)
	}

	profileStore, err := profiles.NewPostgresStore(db)
	if err != nil {
		return httpserver.Deps{}, fmt.Errorf("create postgres profile store: %w", err)
	}
	profileService, err := profiles.NewService(profileStore, metrics)
	if err != nil {
		return httpserver.Deps{}, fmt.Errorf("create profile service: %w", err)
	}

	return httpserver.Deps{
		Auth:            authService,
		Articles:        articleService,
		Profiles:        profileService,
		Sessions:        auth.NewSessionResolver(sessions, userStore, logger),
		Audit:           audit.NewLogger(cfg.AuditLogFile),
		Metrics:         metrics,
		DB:              db,
		Logger:          logger,
		TrustProxy:      cfg.HTTP.TrustProxyHeaders,
		PublicBaseURL:   cfg.PublicBaseURL,
		FrontendDistDir: cfg.FrontendDistDir,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer func() {
		if a.db != nil {
			_ = a.db.Close()
		}
	}()
	defer a.flushTraces()

	errCh := make(chan error, 1)

	go func() {
		a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server exited: %w", err)
	}
}

func (a *App) flushTraces() {
	if a.shutdownTracing == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
	defer cancel()
	if err := a.shutdownTracing(ctx); err != nil {
		a.log.Warn("tracer provider shutdown failed", slog.Any("err", err))
	}
}
