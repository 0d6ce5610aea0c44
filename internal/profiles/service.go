package profiles

import (
	"context"
	"fmt"
	"strings"
)

type Store interface {
	Get(ctx context.Context, username, viewer string) (Profile, error)
	ToggleFollow(ctx context.Context, follower, influencer string) (bool, error)
}

type ToggleCounter interface {
	CountToggle(kind string, on bool)
}

type Service struct {
	store   Store
	toggles ToggleCounter
}

func NewService(store Store, toggles ToggleCounter) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	return &Service{store: store, toggles: toggles}, nil
}

func (s *Service) Get(ctx context.Context, username, viewer string) (Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Profile{}, ErrNotFound
	}
	return s.store.Get(ctx, username, viewer)
}

func (s *Service) ToggleFollow(ctx context.Context, viewer, other string) (bool, error) {
	other = strings.TrimSpace(other)
	if viewer == "" {
		return false, ErrUnauthorized
	}
	if other == "" {
		return false, ErrNotFound
	}
	if other == viewer {
		return false, ErrSelfFollow
	}
	following, err := s.store.ToggleFollow(ctx, viewer, other)
	if err != nil {
		return false, err
	}
	if s.toggles != nil {
		s.toggles.CountToggle("follow", following)
	}
	return following, nil
}
