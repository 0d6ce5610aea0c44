package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"realworld/conduit/internal/config"
	"realworld/conduit/internal/httpserver"
)

func testConfig() config.Config {
	return config.Config{
		HTTP: config.HTTPConfig{Addr: ":0", ShutdownTimeout: time.Second},
		Auth: config.AuthConfig{
			JWTSecret:  "test-secret",
			SessionTTL: time.Hour,
			ResetTTL:   time.Hour,
		},
		Mailer: config.MailerConfig{
			Email:      "noreply@example.com",
			Password:   "pw",
			SMTPServer: "smtp.example.com",
			SMTPPort:   587,
		},
	}
}

func TestBuildDepsWiresEveryService(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	deps, err := buildDeps(testConfig(), db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("buildDeps() error: %v", err)
	}
	if deps.Auth == nil || deps.Articles == nil || deps.Profiles == nil || deps.Sessions == nil || deps.Metrics == nil {
		t.Fatalf("expected all services wired, got %+v", deps)
	}

	mock.ExpectPing()
	h := httpserver.NewHandler(deps)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected readyz 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/settings", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected guard redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestBuildDepsRejectsMissingSecret(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	cfg := testConfig()
	cfg.Auth.JWTSecret = ""
	if _, err := buildDeps(cfg, db, nil); err == nil {
		t.Fatalf("expected error without a signing secret")
	}
}

func TestFlushTracesCallsShutdown(t *testing.T) {
	var calls int
	a := &App{
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		shutdownTracing: func(ctx context.Context) error {
			calls++
			if _, ok := ctx.Deadline(); !ok {
				t.Fatalf("expected a bounded shutdown context")
			}
			return errors.New("exporter gone")
		},
	}
	a.flushTraces()
	if calls != 1 {
		t.Fatalf("expected one shutdown call, got %d", calls)
	}

	(&App{}).flushTraces()
}

func TestBuildDepsPassesProxyTrust(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error: %v", err)
	}
	defer db.Close()

	cfg := testConfig()
	cfg.HTTP.TrustProxyHeaders = true
	deps, err := buildDeps(cfg, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("buildDeps() error: %v", err)
	}
	if !deps.TrustProxy {
		t.Fatalf("expected TrustProxy to follow HTTP_TRUST_PROXY")
	}
}
