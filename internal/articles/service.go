package articles

import (
	"context"
	"fmt"
	"strings"
)

const (
	minTitleLength       = 4
	minDescriptionLength = 4
	minBodyLength        = 10
)

type Store interface {
	List(ctx context.Context, f Filter) ([]Article, error)
	Get(ctx context.Context, slug, viewer string) (Article, error)
	Create(ctx context.Context, author string, d Draft) error
	Update(ctx context.Context, author string, d Draft) error
	Delete(ctx context.Context, author, slug string) error
	ToggleFavorite(ctx context.Context, username, slug string) (FavoriteState, error)
	Tags(ctx context.Context) ([]string, error)
	Comments(ctx context.Context, slug string) ([]Comment, error)
	AddComment(ctx context.Context, slug, username, body string) (Comment, error)
	DeleteComment(ctx context.Context, id int64, username string) error
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
		return nil, fmt.Errorf("article store is required")
	}
	return &Service{store: store, toggles: toggles}, nil
}

// List returns one page of articles. The feed filter only applies to an
// authenticated viewer and an amount of zero never reaches storage.
func (s *Service) List(ctx context.Context, p Pagination, viewer string) ([]Article, error) {
	p = p.clamped()
	if p.Amount == 0 {
		return []Article{}, nil
	}
	return s.store.List(ctx, Filter{
		Viewer: viewer,
		Tag:    p.Tag,
		Feed:   p.MyFeed && viewer != "",
		Limit:  p.Amount,
		Offset: p.Offset(),
	})
}

func (s *Service) ListByAuthor(ctx context.Context, author string, p Pagination, viewer string) ([]Article, error) {
	p = p.clamped()
	if p.Amount == 0 || author == "" {
		return []Article{}, nil
	}
	return s.store.List(ctx, Filter{Viewer: viewer, Author: author, Limit: p.Amount, Offset: p.Offset()})
}

func (s *Service) ListFavoritedBy(ctx context.Context, username string, p Pagination, viewer string) ([]Article, error) {
	p = p.clamped()
	if p.Amount == 0 || username == "" {
		return []Article{}, nil
	}
	return s.store.List(ctx, Filter{Viewer: viewer, FavoritedBy: username, Limit: p.Amount, Offset: p.Offset()})
}

func (s *Service) Get(ctx context.Context, slug, viewer string) (Article, error) {
	if slug == "" {
		return Article{}, ErrNotFound
	}
	return s.store.Get(ctx, slug, viewer)
}

func ValidateInput(in Input) (Draft, error) {
	d := Draft{
		Slug:        strings.TrimSpace(in.Slug),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Body:        in.Body,
		Tags:        ParseTags(in.TagList),
	}
	if len(d.Title) < minTitleLength {
		return Draft{}, &ValidationError{Message: fmt.Sprintf("You need to provide a title with at least %d characters", minTitleLength)}
	}
	if len(d.Description) < minDescriptionLength {
		return Draft{}, &ValidationError{Message: fmt.Sprintf("You need to provide a description with at least %d characters", minDescriptionLength)}
	}
	if len(strings.TrimSpace(d.Body)) < minBodyLength {
		return Draft{}, &ValidationError{Message: fmt.Sprintf("You need to provide a body with at least %d characters", minBodyLength)}
	}
	return d, nil
}

// Save creates a new article when in.Slug is empty and otherwise updates the
// author's article with that slug. It returns the article's slug.
func (s *Service) Save(ctx context.Context, author string, in Input) (string, error) {
	if author == "" {
		return "", ErrUnauthorized
	}
	d, err := ValidateInput(in)
	if err != nil {
		return "", err
	}
	if d.Slug != "" {
		if err := s.store.Update(ctx, author, d); err != nil {
			return "", err
		}
		return d.Slug, nil
	}
	d.Slug = Slugify(d.Title)
	if d.Slug == "" {
		return "", &ValidationError{Message: "The title must contain letters or digits"}
	}
	if err := s.store.Create(ctx, author, d); err != nil {
		return "", err
	}
	return d.Slug, nil
}

func (s *Service) Delete(ctx context.Context, viewer, slug string) error {
	if viewer == "" {
		return ErrUnauthorized
	}
	return s.store.Delete(ctx, viewer, slug)
}

func (s *Service) ToggleFavorite(ctx context.Context, viewer, slug string) (FavoriteState, error) {
	if viewer == "" {
		return FavoriteState{}, ErrUnauthorized
	}
	if slug == "" {
		return FavoriteState{}, ErrNotFound
	}
	st, err := s.store.ToggleFavorite(ctx, viewer, slug)
	if err != nil {
		return FavoriteState{}, err
	}
	if s.toggles != nil {
		s.toggles.CountToggle("favorite", st.Favorited)
	}
	return st, nil
}

func (s *Service) Tags(ctx context.Context) ([]string, error) {
	return s.store.Tags(ctx)
}

func (s *Service) Comments(ctx context.Context, slug string) ([]Comment, error) {
	return s.store.Comments(ctx, slug)
}

func (s *Service) AddComment(ctx context.Context, viewer, slug, body string) (Comment, error) {
	if viewer == "" {
		return Comment{}, ErrUnauthorized
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Comment{}, &ValidationError{Message: "The comment cannot be empty"}
	}
	return s.store.AddComment(ctx, slug, viewer, body)
}

func (s *Service) DeleteComment(ctx context.Context, viewer string, id int64) error {
	if viewer == "" {
		return ErrUnauthorized
	}
	return s.store.DeleteComment(ctx, id, viewer)
}
