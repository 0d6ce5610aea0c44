package auth

import (
	"net/http"
	"strings"
)

type PathCategory int

const (
	Public PathCategory = iota
	AuthOnly
	AuthRequired
)

func (c PathCategory) String() string {
	switch c {
	case AuthOnly:
		return "auth_only"
	case AuthRequired:
		return "auth_required"
	default:
		return "public"
	}
}

var (
	authOnlyPrefixes     = []string{"/login", "/signup"}
	authRequiredPrefixes = []string{"/settings", "/editor"}
)

func Classify(path string) PathCategory {
	for _, p := range authOnlyPrefixes {
		if hasSegmentPrefix(path, p) {
			return AuthOnly
		}
	}
	for _, p := range authRequiredPrefixes {
		if hasSegmentPrefix(path, p) {
			return AuthRequired
		}
	}
	return Public
}

func hasSegmentPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

type Decision struct {
	Redirect    string
	ClearCookie bool
}

func (d Decision) Forward() bool {
	return d.Redirect == ""
}

func Decide(authenticated bool, category PathCategory) Decision {
	switch {
	case authenticated && category == AuthOnly:
		return Decision{Redirect: "/"}
	case !authenticated && category == AuthRequired:
		return Decision{Redirect: "/login", ClearCookie: true}
	default:
		return Decision{}
	}
}

// Guard resolves the session once per request, applies the redirect table
// and stores the viewer in the request context for downstream handlers.
func Guard(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, ok := resolver.Resolve(r.Context(), r)
			d := Decide(ok, Classify(r.URL.Path))
			if !d.Forward() {
				if d.ClearCookie {
					ClearCookie(w)
				}
				w.Header().Set("Location", d.Redirect)
				w.WriteHeader(http.StatusFound)
				return
			}
			if ok {
				r = r.WithContext(WithViewer(r.Context(), username))
			}
			next.ServeHTTP(w, r)
		})
	}
}
