package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, "info")
	log.Debug("hidden")
	log.Info("visible", "user", "alice")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["msg"] != "visible" || rec["user"] != "alice" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(nil)
	m.ObserveRequest("GET", "/api/articles", 200, 5*time.Millisecond)
	m.ObserveRequest("GET", "/api/articles", 200, 7*time.Millisecond)
	m.ObserveRequest("POST", "", 404, time.Millisecond)
	m.CountToggle("favorite", true)
	m.CountToggle("favorite", false)
	m.CountToggle("favorite", true)
	m.CountAuth("login", "failure")

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/articles", "200")); got != 2 {
		t.Fatalf("expected 2 article requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("POST", "unmatched", "404")); got != 1 {
		t.Fatalf("expected unmatched route label, got %v", got)
	}
	if got := testutil.ToFloat64(m.toggles.WithLabelValues("favorite", "on")); got != 2 {
		t.Fatalf("expected 2 favorite-on toggles, got %v", got)
	}
	if got := testutil.ToFloat64(m.auth.WithLabelValues("login", "failure")); got != 1 {
		t.Fatalf("expected 1 failed login, got %v", got)
	}
}

func TestMetricsHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics(nil)
	m.CountToggle("follow", true)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	if rr.Code != 200 {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `conduit_toggles_total{kind="follow",state="on"} 1`) {
		t.Fatalf("metrics output missing toggle counter:\n%s", rr.Body.String())
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", "/", 200, time.Millisecond)
	m.CountToggle("follow", true)
	m.CountAuth("login", "success")
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}
