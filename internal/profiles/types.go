package profiles

import "errors"

var (
	ErrNotFound     = errors.New("profile not found")
	ErrSelfFollow   = errors.New("cannot follow yourself")
	ErrUnauthorized = errors.New("authentication required")
)

type Profile struct {
	Username  string `json:"username"`
	Bio       string `json:"bio"`
	Image     string `json:"image"`
	Following bool   `json:"following"`
}
