package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"

	"realworld/conduit/internal/observability"
)

const pqForeignKeyViolation = "23503"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, username, viewer string) (p Profile, err error) {
	ctx, span := observability.StartSpan(ctx, "profiles.Get", attribute.String("profile.username", username))
	defer func() { observability.FinishSpan(span, err) }()

	const q = `
SELECT u.username, u.bio, u.image,
	EXISTS (SELECT 1 FROM follows f WHERE f.follower = $2 AND f.influencer = u.username)
FROM users u
WHERE u.username = $1`
	viewerArg := sql.NullString{String: viewer, Valid: viewer != ""}
	if err := s.db.QueryRowContext(ctx, q, username, viewerArg).Scan(&p.Username, &p.Bio, &p.Image, &p.Following); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("query profile: %w", err)
	}
	return p, nil
}

// ToggleFollow flips the follower -> influencer edge in one statement and
// reports whether the edge exists afterwards.
func (s *PostgresStore) ToggleFollow(ctx context.Context, follower, influencer string) (following bool, err error) {
	ctx, span := observability.StartSpan(ctx, "profiles.ToggleFollow", attribute.String("profile.username", influencer))
	defer func() { observability.FinishSpan(span, err) }()

	const q = `
WITH removed AS (
	DELETE FROM follows
	WHERE follower = $1 AND influencer = $2
	RETURNING 1
), added AS (
	INSERT INTO follows (follower, influencer)
	SELECT $1, $2
	WHERE NOT EXISTS (SELECT 1 FROM removed)
	ON CONFLICT DO NOTHING
	RETURNING 1
)
SELECT EXISTS (SELECT 1 FROM added)`
	if err := s.db.QueryRowContext(ctx, q, follower, influencer).Scan(&following); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("toggle follow: %w", err)
	}
	return following, nil
}
