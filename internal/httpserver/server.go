package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"realworld/conduit/internal/articles"
	"realworld/conduit/internal/audit"
	"realworld/conduit/internal/auth"
	"realworld/conduit/internal/config"
	"realworld/conduit/internal/observability"
	"realworld/conduit/internal/profiles"
)

const (
	maxBodyBytes   = 1 << 20
	genericFailure = "There is an unknown problem, try again later"
)

type AuthService interface {
	Signup(ctx context.Context, username, email, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
	CurrentUser(ctx context.Context, username string) (auth.User, error)
	UpdateSettings(ctx context.Context, username string, in auth.SettingsInput) error
	RequestPasswordReset(ctx context.Context, email, linkBase string) error
	ResetPassword(ctx context.Context, token, password, confirm string) error
}

type ArticleService interface {
	List(ctx context.Context, p articles.Pagination, viewer string) ([]articles.Article, error)
	ListByAuthor(ctx context.Context, author string, p articles.Pagination, viewer string) ([]articles.Article, error)
	ListFavoritedBy(ctx context.Context, username string, p articles.Pagination, viewer string) ([]articles.Article, error)
	Get(ctx context.Context, slug, viewer string) (articles.Article, error)
	Save(ctx context.Context, author string, in articles.Input) (string, error)
	Delete(ctx context.Context, viewer, slug string) error
	ToggleFavorite(ctx context.Context, viewer, slug string) (articles.FavoriteState, error)
	Tags(ctx context.Context) ([]string, error)
	Comments(ctx context.Context, slug string) ([]articles.Comment, error)
	AddComment(ctx context.Context, viewer, slug, body string) (articles.Comment, error)
	DeleteComment(ctx context.Context, viewer string, id int64) error
}

type ProfileService interface {
	Get(ctx context.Context, username, viewer string) (profiles.Profile, error)
	ToggleFollow(ctx context.Context, viewer, other string) (bool, error)
}

type AuditLogger interface {
	Record(e audit.Event) error
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Auth     AuthService
	Articles ArticleService
	Profiles ProfileService
	Sessions auth.Resolver
	Audit    AuditLogger
	Metrics  *observability.Metrics
	DB       Pinger
	Logger   *slog.Logger
	// TrustProxy applies X-Forwarded-For and X-Real-IP to the client address.
	TrustProxy      bool
	PublicBaseURL   string
	FrontendDistDir string
}

type Server struct {
	httpServer *http.Server
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewHandler(deps),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(loggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.Recoverer)
	if deps.TrustProxy {
		r.Use(middleware.RealIP)
	}
	if deps.Sessions != nil {
		r.Use(auth.Guard(deps.Sessions))
	}
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.DB.PingContext(ctx); err != nil {
				deps.Logger.Warn("readiness check failed", slog.Any("err", err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusNotFound, "could not find the requested resource")
		})
		registerAuthHandlers(api, deps)
		registerArticleHandlers(api, deps)
		registerProfileHandlers(api, deps)
	})

	registerFrontendHandlers(r, deps.FrontendDistDir)
	return r
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requireViewer answers 401 for API routes that need a signed-in user. The
// guard has already placed the viewer in the context when there is one.
func requireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ViewerFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func viewer(r *http.Request) string {
	v, _ := auth.ViewerFrom(r.Context())
	return v
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeStatus(w http.ResponseWriter, code int, status, message string) {
	payload := map[string]string{"status": status}
	if message != "" {
		payload["message"] = message
	}
	writeJSON(w, code, payload)
}

func writeFailure(w http.ResponseWriter, r *http.Request, log *slog.Logger, msg string, err error) {
	log.Error(msg, "path", r.URL.Path, "request_id", requestIDFromContext(r.Context()), slog.Any("err", err))
	writeError(w, http.StatusInternalServerError, genericFailure)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func loggingMiddleware(log *slog.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", reqID)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			metrics.ObserveRequest(r.Method, route, rec.status, elapsed)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", reqID,
			)
		})
	}
}

type requestIDKey struct{}

func requestIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(requestIDKey{}).(string); ok {
		return s
	}
	return ""
}

// clientIP reads RemoteAddr. Forwarding headers only reach it when the
// server trusts its proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func auditReq(a AuditLogger, r *http.Request, actor, action, target, outcome, detail string) {
	if a == nil {
		return
	}
	_ = a.Record(audit.Event{
		Actor:     actor,
		Action:    action,
		Target:    target,
		Outcome:   outcome,
		RequestID: requestIDFromContext(r.Context()),
		IP:        clientIP(r),
		Detail:    strings.TrimSpace(detail),
	})
}

// linkBase is the origin used in mailed links. PublicBaseURL wins; otherwise
// it is derived from the request.
func linkBase(configured string, r *http.Request) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}
