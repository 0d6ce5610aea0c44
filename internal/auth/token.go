package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AudienceSession       = "session"
	AudiencePasswordReset = "password-reset"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Subject   string
	Audience  string
	ExpiresAt time.Time
}

// TokenCodec signs and verifies HS256 tokens for exactly one audience.
type TokenCodec struct {
	secret   []byte
	audience string
	ttl      time.Duration
	nowFunc  func() time.Time
}

func NewTokenCodec(secret []byte, audience string, ttl time.Duration) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token secret is required")
	}
	if audience == "" {
		return nil, fmt.Errorf("token audience is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token TTL must be > 0")
	}
	return &TokenCodec{
		secret:   append([]byte(nil), secret...),
		audience: audience,
		ttl:      ttl,
		nowFunc:  time.Now,
	}, nil
}

func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

func (c *TokenCodec) Issue(subject string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("token subject is required")
	}
	now := c.nowFunc()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{c.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (c *TokenCodec) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalidToken
	}
	var rc jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &rc, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(c.audience),
		jwt.WithTimeFunc(c.nowFunc),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || rc.Subject == "" || rc.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}
	return Claims{
		Subject:   rc.Subject,
		Audience:  c.audience,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
