package articles

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("article not found")
	ErrInvalidInput = errors.New("invalid article input")
	ErrUnauthorized = errors.New("authentication required")
)

// ValidationError matches ErrInvalidInput under errors.Is and carries a
// message that is safe to show to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

type Author struct {
	Username  string `json:"username"`
	Image     string `json:"image"`
	Following bool   `json:"following"`
}

type Article struct {
	Slug           string    `json:"slug"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Body           string    `json:"body,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	FavoritesCount int64     `json:"favorites_count"`
	TagList        []string  `json:"tag_list"`
	Author         Author    `json:"author"`
	Fav            bool      `json:"fav"`
}

type Comment struct {
	ID        int64     `json:"id"`
	Article   string    `json:"article"`
	Username  string    `json:"username"`
	Image     string    `json:"user_image"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Input is the editor payload. An empty Slug creates a new article; a set
// Slug updates the caller's existing article.
type Input struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Body        string `json:"body"`
	TagList     string `json:"tag_list"`
}

// Draft is a validated Input ready for storage.
type Draft struct {
	Slug        string
	Title       string
	Description string
	Body        string
	Tags        []string
}

type FavoriteState struct {
	Favorited      bool  `json:"favorited"`
	FavoritesCount int64 `json:"favorites_count"`
}
