package articles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"

	"realworld/conduit/internal/observability"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"

	constraintArticlesPkey = "articles_pkey"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) (out []Article, err error) {
	ctx, span := observability.StartSpan(ctx, "articles.List",
		attribute.String("articles.tag", f.Tag),
		attribute.Bool("articles.feed", f.Feed),
		attribute.Int("articles.limit", f.Limit),
		attribute.Int("articles.offset", f.Offset),
	)
	defer func() { observability.FinishSpan(span, err) }()

	q, args := buildListQuery(f)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	out = make([]Article, 0)
	for rows.Next() {
		var a Article
		if err := rows.Scan(
			&a.Slug,
			&a.Title,
			&a.Description,
			&a.Body,
			&a.CreatedAt,
			&a.FavoritesCount,
			&a.Author.Username,
			&a.Author.Image,
			&a.Fav,
			&a.Author.Following,
			pq.Array(&a.TagList),
		); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		if a.TagList == nil {
			a.TagList = []string{}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, slug, viewer string) (Article, error) {
	list, err := s.List(ctx, Filter{Viewer: viewer, Slug: slug, IncludeBody: true, Limit: 1})
	if err != nil {
		return Article{}, err
	}
	if len(list) == 0 {
		return Article{}, ErrNotFound
	}
	return list[0], nil
}

func (s *PostgresStore) Create(ctx context.Context, author string, d Draft) (err error) {
	ctx, span := observability.StartSpan(ctx, "articles.Create", attribute.String("articles.slug", d.Slug))
	defer func() { observability.FinishSpan(span, err) }()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		const q = `
INSERT INTO articles (slug, author, title, description, body)
VALUES ($1, $2, $3, $4, $5)`
		if _, err := tx.ExecContext(ctx, q, d.Slug, author, d.Title, d.Description, d.Body); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation && pqErr.Constraint == constraintArticlesPkey {
				return &ValidationError{Message: "An article with this title already exists"}
			}
			return fmt.Errorf("insert article: %w", err)
		}
		return replaceTags(ctx, tx, d.Slug, d.Tags)
	})
}

func (s *PostgresStore) Update(ctx context.Context, author string, d Draft) (err error) {
	ctx, span := observability.StartSpan(ctx, "articles.Update", attribute.String("articles.slug", d.Slug))
	defer func() { observability.FinishSpan(span, err) }()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		const q = `
UPDATE articles
SET title = $3,
	description = $4,
	body = $5,
	updated_at = NOW()
WHERE slug = $1 AND author = $2`
		res, err := tx.ExecContext(ctx, q, d.Slug, author, d.Title, d.Description, d.Body)
		if err != nil {
			return fmt.Errorf("update article: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update article rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return replaceTags(ctx, tx, d.Slug, d.Tags)
	})
}

func (s *PostgresStore) Delete(ctx context.Context, author, slug string) error {
	const q = `DELETE FROM articles WHERE slug = $1 AND author = $2`
	res, err := s.db.ExecContext(ctx, q, slug, author)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete article rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleFavorite flips the favorite edge in one statement. All CTE parts see
// the same snapshot, so the count is corrected by what this statement changed.
func (s *PostgresStore) ToggleFavorite(ctx context.Context, username, slug string) (st FavoriteState, err error) {
	ctx, span := observability.StartSpan(ctx, "articles.ToggleFavorite", attribute.String("articles.slug", slug))
	defer func() { observability.FinishSpan(span, err) }()

	const q = `
WITH removed AS (
	DELETE FROM fav_articles
	WHERE article = $1 AND username = $2
	RETURNING 1
), added AS (
	INSERT INTO fav_articles (article, username)
	SELECT $1, $2
	WHERE NOT EXISTS (SELECT 1 FROM removed)
	ON CONFLICT DO NOTHING
	RETURNING 1
)
SELECT
	EXISTS (SELECT 1 FROM added),
	(SELECT COUNT(*) FROM fav_articles WHERE article = $1)
		- (SELECT COUNT(*) FROM removed)
		+ (SELECT COUNT(*) FROM added)`
	if err := s.db.QueryRowContext(ctx, q, slug, username).Scan(&st.Favorited, &st.FavoritesCount); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return FavoriteState{}, ErrNotFound
		}
		return FavoriteState{}, fmt.Errorf("toggle favorite: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) Tags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tag FROM article_tags ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Comments(ctx context.Context, slug string) ([]Comment, error) {
	const q = `
SELECT c.id, c.article, c.username, u.image, c.body, c.created_at
FROM comments c
JOIN users u ON u.username = c.username
WHERE c.article = $1
ORDER BY c.created_at ASC, c.id ASC`
	rows, err := s.db.QueryContext(ctx, q, slug)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	out := make([]Comment, 0)
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.Article, &c.Username, &c.Image, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AddComment(ctx context.Context, slug, username, body string) (Comment, error) {
	const q = `
WITH inserted AS (
	INSERT INTO comments (article, username, body)
	VALUES ($1, $2, $3)
	RETURNING id, article, username, body, created_at
)
SELECT i.id, i.article, i.username, u.image, i.body, i.created_at
FROM inserted i
JOIN users u ON u.username = i.username`
	var c Comment
	if err := s.db.QueryRowContext(ctx, q, slug, username, body).Scan(&c.ID, &c.Article, &c.Username, &c.Image, &c.Body, &c.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return Comment{}, ErrNotFound
		}
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, id int64, username string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1 AND username = $2`, id, username)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete comment rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func replaceTags(ctx context.Context, tx *sql.Tx, slug string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM article_tags WHERE article = $1`, slug); err != nil {
		return fmt.Errorf("clear article tags: %w", err)
	}
	if len(tags) == 0 {
		return nil
	}
	const q = `
INSERT INTO article_tags (article, tag)
SELECT $1, unnest($2::text[])`
	if _, err := tx.ExecContext(ctx, q, slug, pq.Array(tags)); err != nil {
		return fmt.Errorf("insert article tags: %w", err)
	}
	return nil
}
