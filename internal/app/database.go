package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"realworld/conduit/internal/config"
	"realworld/conduit/internal/migrations"
)

const pingAttemptTimeout = 2 * time.Second

// OpenDatabase opens the Postgres pool with the configured bounds and checks
// that it answers.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// WaitForDatabase polls until the database answers a ping or timeout elapses.
func WaitForDatabase(ctx context.Context, url string, timeout, interval time.Duration, log *slog.Logger) error {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	deadline := time.Now().Add(timeout)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, pingAttemptTimeout)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			log.Info("database ready")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not ready within %s: %w", timeout, err)
		}
		log.Info("waiting for database", slog.Any("err", err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB, log *slog.Logger) ([]string, error) {
	svc, err := migrations.NewService(migrations.Embedded(), db, log)
	if err != nil {
		return nil, fmt.Errorf("create migration service: %w", err)
	}
	applied, err := svc.Apply(ctx)
	if err != nil {
		return applied, fmt.Errorf("apply migrations: %w", err)
	}
	return applied, nil
}
