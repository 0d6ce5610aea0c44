package migrations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed sql/*.sql
var embedded embed.FS

// Embedded returns the schema migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

type FileInfo struct {
	Name     string `json:"name"`
	Checksum string `json:"checksum"`
}

type Status struct {
	Name      string `json:"name"`
	Checksum  string `json:"checksum"`
	Applied   bool   `json:"applied"`
	AppliedAt string `json:"applied_at,omitempty"`
}

type appliedRecord struct {
	checksum  string
	appliedAt time.Time
}

type Service struct {
	files   fs.FS
	db      *sql.DB
	log     *slog.Logger
	nowFunc func() time.Time
}

func NewService(files fs.FS, db *sql.DB, log *slog.Logger) (*Service, error) {
	if files == nil {
		return nil, fmt.Errorf("migration files are required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{files: files, db: db, log: log, nowFunc: time.Now}, nil
}

func (s *Service) List() ([]FileInfo, error) {
	entries, err := fs.ReadDir(s.files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	out := make([]FileInfo, 0)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := fs.ReadFile(s.files, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		out = append(out, FileInfo{Name: e.Name(), Checksum: checksum(b)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Service) Status(ctx context.Context) ([]Status, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	applied, err := s.loadApplied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(files))
	for _, f := range files {
		st := Status{Name: f.Name, Checksum: f.Checksum}
		if rec, ok := applied[f.Name]; ok {
			st.Applied = true
			st.AppliedAt = rec.appliedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, st)
	}
	return out, nil
}

// Apply runs every pending migration in name order, each in its own
// transaction, and returns the names it applied. A previously applied file
// whose content changed aborts the run.
func (s *Service) Apply(ctx context.Context) ([]string, error) {
	files, err := s.List()
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	applied, err := s.loadApplied(ctx)
	if err != nil {
		return nil, err
	}

	done := make([]string, 0)
	for _, f := range files {
		if rec, ok := applied[f.Name]; ok {
			if rec.checksum != f.Checksum {
				return done, fmt.Errorf("migration %s changed after it was applied", f.Name)
			}
			continue
		}
		if err := s.applyOne(ctx, f); err != nil {
			return done, err
		}
		s.log.Info("migration applied", "name", f.Name)
		done = append(done, f.Name)
	}
	return done, nil
}

func (s *Service) applyOne(ctx context.Context, f FileInfo) error {
	body, err := fs.ReadFile(s.files, path.Clean(f.Name))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", f.Name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", f.Name, err)
	}
	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("run migration %s: %w", f.Name, err)
	}
	const q = `
INSERT INTO schema_migrations (name, checksum, applied_at)
VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, q, f.Name, f.Checksum, s.nowFunc().UTC()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", f.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", f.Name, err)
	}
	return nil
}

func (s *Service) ensureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

func (s *Service) loadApplied(ctx context.Context) (map[string]appliedRecord, error) {
	const q = `SELECT name, checksum, applied_at FROM schema_migrations`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query migration state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]appliedRecord)
	for rows.Next() {
		var name string
		var rec appliedRecord
		if err := rows.Scan(&name, &rec.checksum, &rec.appliedAt); err != nil {
			return nil, fmt.Errorf("scan migration state: %w", err)
		}
		out[name] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migration state: %w", err)
	}
	return out, nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
