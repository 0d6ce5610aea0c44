package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"realworld/conduit/internal/articles"
	"realworld/conduit/internal/auth"
	"realworld/conduit/internal/httpserver"
	"realworld/conduit/internal/migrations"
	"realworld/conduit/internal/observability"
	"realworld/conduit/internal/profiles"
)

func openTestPostgres(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres integration tests")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open() error: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := db.Ping(); err != nil {
		t.Fatalf("db.Ping() error: %v", err)
	}

	svc, err := migrations.NewService(migrations.Embedded(), db, nil)
	if err != nil {
		t.Fatalf("migrations.NewService() error: %v", err)
	}
	if _, err := svc.Apply(context.Background()); err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	return db
}

type capturingMailer struct {
	mu   sync.Mutex
	body string
}

func (m *capturingMailer) Send(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.body = body
	return nil
}

func (m *capturingMailer) lastBody() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.body
}

func newTestServer(t *testing.T, db *sql.DB, mail auth.Mailer) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	secret := []byte("integration-secret")

	sessions, err := auth.NewTokenCodec(secret, auth.AudienceSession, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec() error: %v", err)
	}
	resets, err := auth.NewTokenCodec(secret, auth.AudiencePasswordReset, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenCodec() error: %v", err)
	}
	users, err := auth.NewPostgresUserStore(db)
	if err != nil {
		t.Fatalf("NewPostgresUserStore() error: %v", err)
	}
	authSvc, err := auth.NewService(users, auth.ServiceConfig{
		Sessions:   sessions,
		Resets:     resets,
		Mailer:     mail,
		BcryptCost: 4,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("auth.NewService() error: %v", err)
	}

	metrics := observability.NewMetrics(nil)
	articleStore, err := articles.NewPostgresStore(db)
	if err != nil {
		t.Fatalf("articles.NewPostgresStore() error: %v", err)
	}
	articleSvc, err := articles.NewService(articleStore, metrics)
	if err != nil {
		t.Fatalf("articles.NewService() error: %v", err)
	}
	profileStore, err := profiles.NewPostgresStore(db)
	if err != nil {
		t.Fatalf("profiles.NewPostgresStore() error: %v", err)
	}
	profileSvc, err := profiles.NewService(profileStore, metrics)
	if err != nil {
		t.Fatalf("profiles.NewService() error: %v", err)
	}

	srv := httptest.NewServer(httpserver.NewHandler(httpserver.Deps{
		Auth:     authSvc,
		Articles: articleSvc,
		Profiles: profileSvc,
		Sessions: auth.NewSessionResolver(sessions, users, logger),
		Metrics:  metrics,
		DB:       db,
		Logger:   logger,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func call(t *testing.T, c *http.Client, method, target string, body any, out any) int {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, target, rdr)
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, target, err)
		}
	}
	return resp.StatusCode
}

func sessionCookie(t *testing.T, c *http.Client, base string) string {
	t.Helper()
	u, err := url.Parse(base)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == auth.CookieName {
			return ck.Value
		}
	}
	return ""
}

func findArticle(list []articles.Article, slug string) (articles.Article, bool) {
	for _, a := range list {
		if a.Slug == slug {
			return a, true
		}
	}
	return articles.Article{}, false
}

func resetFixtures(t *testing.T, db *sql.DB) {
	t.Helper()
	cleanup := func() {
		_, _ = db.Exec(`DELETE FROM articles WHERE slug = 'hello-world'`)
		_, _ = db.Exec(`DELETE FROM users WHERE username = 'alice' OR email = 'a@x.com'`)
	}
	cleanup()
	t.Cleanup(cleanup)
}

func TestAliceEndToEnd(t *testing.T) {
	db := openTestPostgres(t)
	resetFixtures(t, db)
	srv := newTestServer(t, db, &capturingMailer{})
	alice := newClient(t)

	var status map[string]string
	if code := call(t, alice, http.MethodPost, srv.URL+"/api/signup", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "secret1",
	}, &status); code != http.StatusOK || status["status"] != "success" {
		t.Fatalf("signup failed: %d %v", code, status)
	}
	issued := sessionCookie(t, alice, srv.URL)
	if issued == "" {
		t.Fatalf("expected a session cookie after signup")
	}

	status = nil
	if code := call(t, alice, http.MethodPost, srv.URL+"/api/login", map[string]string{
		"username": "alice", "password": "wrong",
	}, &status); code != http.StatusUnauthorized || status["status"] != "unauthorized" {
		t.Fatalf("expected unauthorized login: %d %v", code, status)
	}
	if got := sessionCookie(t, alice, srv.URL); got != issued {
		t.Fatalf("failed login must not change the cookie")
	}

	var saved map[string]string
	if code := call(t, alice, http.MethodPost, srv.URL+"/api/articles", map[string]string{
		"title": "Hello World", "description": "first post", "body": "hello from alice", "tag_list": "",
	}, &saved); code != http.StatusOK || saved["slug"] != "hello-world" {
		t.Fatalf("create article failed: %d %v", code, saved)
	}

	var one articles.Article
	if code := call(t, alice, http.MethodGet, srv.URL+"/api/articles/hello-world", nil, &one); code != http.StatusOK {
		t.Fatalf("get article failed: %d", code)
	}
	if len(one.TagList) != 0 || one.Author.Username != "alice" {
		t.Fatalf("unexpected article %+v", one)
	}

	var fav articles.FavoriteState
	if code := call(t, alice, http.MethodPost, srv.URL+"/api/favorite", map[string]string{"slug": "hello-world"}, &fav); code != http.StatusOK {
		t.Fatalf("favorite failed: %d", code)
	}
	if !fav.Favorited || fav.FavoritesCount != 1 {
		t.Fatalf("expected favorited with count 1, got %+v", fav)
	}

	var mine []articles.Article
	call(t, alice, http.MethodGet, srv.URL+"/api/articles?amount=100", nil, &mine)
	if a, ok := findArticle(mine, "hello-world"); !ok || !a.Fav || a.FavoritesCount != 1 {
		t.Fatalf("expected fav=true for alice, got %+v (found=%v)", a, ok)
	}

	var anon []articles.Article
	call(t, newClient(t), http.MethodGet, srv.URL+"/api/articles?amount=100", nil, &anon)
	if a, ok := findArticle(anon, "hello-world"); !ok || a.Fav || a.FavoritesCount != 1 {
		t.Fatalf("expected fav=false anonymously, got %+v (found=%v)", a, ok)
	}
}

func TestFavoriteToggleTwiceRestoresState(t *testing.T) {
	db := openTestPostgres(t)
	resetFixtures(t, db)
	srv := newTestServer(t, db, &capturingMailer{})
	alice := newClient(t)

	call(t, alice, http.MethodPost, srv.URL+"/api/signup", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "secret1",
	}, nil)
	call(t, alice, http.MethodPost, srv.URL+"/api/articles", map[string]string{
		"title": "Hello World", "description": "first post", "body": "hello from alice", "tag_list": "go",
	}, nil)

	var first, second articles.FavoriteState
	call(t, alice, http.MethodPost, srv.URL+"/api/favorite", map[string]string{"slug": "hello-world"}, &first)
	call(t, alice, http.MethodPost, srv.URL+"/api/favorite", map[string]string{"slug": "hello-world"}, &second)
	if !first.Favorited || first.FavoritesCount != 1 {
		t.Fatalf("unexpected first toggle %+v", first)
	}
	if second.Favorited || second.FavoritesCount != 0 {
		t.Fatalf("expected original state after second toggle, got %+v", second)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	db := openTestPostgres(t)
	resetFixtures(t, db)
	mail := &capturingMailer{}
	srv := newTestServer(t, db, mail)
	c := newClient(t)

	call(t, c, http.MethodPost, srv.URL+"/api/signup", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "secret1",
	}, nil)

	var msg map[string]string
	call(t, c, http.MethodPost, srv.URL+"/api/reset_password/request", map[string]string{"email": "a@x.com"}, &msg)
	if msg["message"] != "Check your email" {
		t.Fatalf("unexpected reset request answer %v", msg)
	}
	body := mail.lastBody()
	i := strings.Index(body, "token=")
	if i < 0 {
		t.Fatalf("expected a reset link in %q", body)
	}
	token, err := url.QueryUnescape(body[i+len("token="):])
	if err != nil {
		t.Fatalf("unescape token: %v", err)
	}

	msg = nil
	call(t, c, http.MethodPost, srv.URL+"/api/reset_password/confirm", map[string]string{
		"token": token, "password": "secret2", "confirm": "secret2",
	}, &msg)
	if msg["message"] != "Password successfully reset, please, proceed to login" {
		t.Fatalf("unexpected reset confirm answer %v", msg)
	}

	var status map[string]string
	if code := call(t, newClient(t), http.MethodPost, srv.URL+"/api/login", map[string]string{
		"username": "alice", "password": "secret2",
	}, &status); code != http.StatusOK {
		t.Fatalf("expected login with the new password, got %d %v", code, status)
	}
}
