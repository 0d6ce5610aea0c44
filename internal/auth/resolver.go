package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (string, bool)
}

type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (User, error)
}

type SessionResolver struct {
	codec *TokenCodec
	users UserLookup
	log   *slog.Logger
}

func NewSessionResolver(codec *TokenCodec, users UserLookup, log *slog.Logger) *SessionResolver {
	if log == nil {
		log = slog.Default()
	}
	return &SessionResolver{codec: codec, users: users, log: log}
}

// Resolve never fails: anything short of a valid token naming an existing
// user yields an anonymous session.
func (s *SessionResolver) Resolve(ctx context.Context, r *http.Request) (string, bool) {
	token, ok := ExtractToken(r)
	if !ok {
		return "", false
	}
	claims, err := s.codec.Verify(token)
	if err != nil {
		s.log.Debug("session token rejected", "err", err)
		return "", false
	}
	if _, err := s.users.GetByUsername(ctx, claims.Subject); err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.log.Error("session user lookup failed", "username", claims.Subject, slog.Any("err", err))
		}
		return "", false
	}
	return claims.Subject, true
}

type viewerKey struct{}

func WithViewer(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, viewerKey{}, username)
}

func ViewerFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(viewerKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
