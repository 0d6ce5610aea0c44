package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation = "23505"

	constraintUsersPkey     = "users_pkey"
	constraintUsersEmailKey = "users_email_key"
)

type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) (*PostgresUserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &PostgresUserStore{db: db}, nil
}

const selectUser = `SELECT username, email, password_hash, bio, image FROM users`

func (s *PostgresUserStore) GetByUsername(ctx context.Context, username string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, ErrUserNotFound
	}
	return s.getOne(ctx, selectUser+` WHERE username = $1`, username)
}

func (s *PostgresUserStore) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, ErrUserNotFound
	}
	return s.getOne(ctx, selectUser+` WHERE email = $1`, email)
}

func (s *PostgresUserStore) getOne(ctx context.Context, q string, arg string) (User, error) {
	var u User
	if err := s.db.QueryRowContext(ctx, q, arg).Scan(&u.Username, &u.Email, &u.PasswordHash, &u.Bio, &u.Image); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (s *PostgresUserStore) Create(ctx context.Context, user User) error {
	if user.Username == "" || user.Email == "" || user.PasswordHash == "" {
		return fmt.Errorf("username, email, and password hash are required")
	}
	const q = `
INSERT INTO users (username, email, password_hash, bio, image)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.db.ExecContext(ctx, q, user.Username, user.Email, user.PasswordHash, user.Bio, user.Image); err != nil {
		if mapped := mapUserConstraint(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStore) Update(ctx context.Context, user User) error {
	const q = `
UPDATE users
SET email = $2,
	bio = $3,
	image = $4,
	password_hash = $5
WHERE username = $1`
	res, err := s.db.ExecContext(ctx, q, user.Username, user.Email, user.Bio, user.Image, user.PasswordHash)
	if err != nil {
		if mapped := mapUserConstraint(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func mapUserConstraint(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case constraintUsersEmailKey:
		return ErrDuplicateEmail
	case constraintUsersPkey:
		return ErrDuplicateUsername
	}
	return nil
}
