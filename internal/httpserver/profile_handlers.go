package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"realworld/conduit/internal/articles"
	"realworld/conduit/internal/profiles"
)

func registerProfileHandlers(r chi.Router, deps Deps) {
	log := deps.Logger

	r.Get("/profiles/{username}", func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profiles.Get(r.Context(), chi.URLParam(r, "username"), viewer(r))
		if err != nil {
			if errors.Is(err, profiles.ErrNotFound) {
				writeError(w, http.StatusNotFound, "could not find the profile")
				return
			}
			writeFailure(w, r, log, "get profile failed", err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	})

	r.Get("/profiles/{username}/articles", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		p := articles.ParsePagination(q)
		username := chi.URLParam(r, "username")
		favorites, _ := strconv.ParseBool(q.Get("favorites"))

		var (
			list []articles.Article
			err  error
		)
		if favorites {
			list, err = deps.Articles.ListFavoritedBy(r.Context(), username, p, viewer(r))
		} else {
			list, err = deps.Articles.ListByAuthor(r.Context(), username, p, viewer(r))
		}
		if err != nil {
			writeFailure(w, r, log, "list profile articles failed", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	r.With(requireViewer).Post("/follow", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OtherUser string `json:"other_user"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		following, err := deps.Profiles.ToggleFollow(r.Context(), viewer(r), req.OtherUser)
		if err != nil {
			switch {
			case errors.Is(err, profiles.ErrSelfFollow):
				writeError(w, http.StatusBadRequest, "you cannot follow yourself")
			case errors.Is(err, profiles.ErrNotFound):
				writeError(w, http.StatusNotFound, "could not find the profile")
			default:
				writeFailure(w, r, log, "toggle follow failed", err)
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"following": following})
	})
}
