package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTP            HTTPConfig
	Database        DatabaseConfig
	Auth            AuthConfig
	Mailer          MailerConfig
	PublicBaseURL   string
	FrontendDistDir string
	AuditLogFile    string
	LogLevel        string
	Tracing         TracingConfig
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// TrustProxyHeaders lets X-Forwarded-For and X-Real-IP replace the peer
	// address. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret string
	// SessionTTL keeps the historical default of 3 600 000 seconds (about 41
	// days). See DESIGN.md before changing it.
	SessionTTL time.Duration
	ResetTTL   time.Duration
}

type TracingConfig struct {
	// Exporter is "none" or "stdout".
	Exporter    string
	ServiceName string
}

type MailerConfig struct {
	Email      string
	Password   string
	SMTPServer string
	SMTPPort   int
}

// Load reads the full server configuration. Every value needed to serve
// traffic must be present; the process refuses to start otherwise.
func Load() (Config, error) {
	db, err := LoadDatabase()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Addr:              getEnv("HTTP_ADDR", ":8080"),
			ReadTimeout:       time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SEC", 10)) * time.Second,
			WriteTimeout:      time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SEC", 15)) * time.Second,
			IdleTimeout:       time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SEC", 60)) * time.Second,
			ShutdownTimeout:   time.Duration(getEnvInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 20)) * time.Second,
			TrustProxyHeaders: getEnvBool("HTTP_TRUST_PROXY", false),
		},
		Database: db,
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			SessionTTL: time.Duration(getEnvInt("AUTH_SESSION_TTL_SEC", 3_600_000)) * time.Second,
			ResetTTL:   time.Duration(getEnvInt("AUTH_RESET_TTL_SEC", 3_600)) * time.Second,
		},
		Mailer: MailerConfig{
			Email:      getEnv("MAILER_EMAIL", ""),
			Password:   getEnv("MAILER_PASSWD", ""),
			SMTPServer: getEnv("MAILER_SMTP_SERVER", ""),
			SMTPPort:   getEnvInt("MAILER_SMTP_PORT", 587),
		},
		PublicBaseURL:   strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", ""), "/"),
		FrontendDistDir: getEnv("FRONTEND_DIST_DIR", ""),
		AuditLogFile:    getEnv("AUDIT_LOG_FILE", "./data/audit.log"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Tracing: TracingConfig{
			Exporter:    strings.ToLower(getEnv("TRACING_EXPORTER", "none")),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "conduit"),
		},
	}

	if cfg.HTTP.Addr == "" {
		return Config{}, fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Auth.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("AUTH_SESSION_TTL_SEC must be > 0")
	}
	if cfg.Auth.ResetTTL <= 0 {
		return Config{}, fmt.Errorf("AUTH_RESET_TTL_SEC must be > 0")
	}
	if cfg.Mailer.Email == "" {
		return Config{}, fmt.Errorf("MAILER_EMAIL is required")
	}
	if cfg.Mailer.Password == "" {
		return Config{}, fmt.Errorf("MAILER_PASSWD is required")
	}
	if cfg.Mailer.SMTPServer == "" {
		return Config{}, fmt.Errorf("MAILER_SMTP_SERVER is required")
	}
	if cfg.Mailer.SMTPPort <= 0 {
		return Config{}, fmt.Errorf("MAILER_SMTP_PORT must be > 0")
	}
	switch cfg.Tracing.Exporter {
	case "none", "stdout":
	default:
		return Config{}, fmt.Errorf("TRACING_EXPORTER must be none or stdout, got %q", cfg.Tracing.Exporter)
	}

	return cfg, nil
}

// LoadDatabase reads only the database settings. It backs the commands that
// talk to Postgres without serving HTTP.
func LoadDatabase() (DatabaseConfig, error) {
	cfg := DatabaseConfig{
		URL:             getEnv("DATABASE_URL", ""),
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300)) * time.Second,
	}
	if cfg.URL == "" {
		return DatabaseConfig{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.MaxOpenConns <= 0 {
		return DatabaseConfig{}, fmt.Errorf("DB_MAX_OPEN_CONNS must be > 0")
	}
	if cfg.MaxIdleConns < 0 || cfg.MaxIdleConns > cfg.MaxOpenConns {
		return DatabaseConfig{}, fmt.Errorf("DB_MAX_IDLE_CONNS must be between 0 and DB_MAX_OPEN_CONNS")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}
