package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"realworld/conduit/internal/articles"
	"realworld/conduit/internal/audit"
)

const articleNotFound = "could not find the article"

func registerArticleHandlers(r chi.Router, deps Deps) {
	log := deps.Logger

	r.Get("/articles", func(w http.ResponseWriter, r *http.Request) {
		p := articles.ParsePagination(r.URL.Query())
		list, err := deps.Articles.List(r.Context(), p, viewer(r))
		if err != nil {
			writeFailure(w, r, log, "list articles failed", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	r.Get("/articles/{slug}", func(w http.ResponseWriter, r *http.Request) {
		a, err := deps.Articles.Get(r.Context(), chi.URLParam(r, "slug"), viewer(r))
		if err != nil {
			if errors.Is(err, articles.ErrNotFound) {
				writeError(w, http.StatusNotFound, articleNotFound)
				return
			}
			writeFailure(w, r, log, "get article failed", err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	})

	r.Get("/articles/{slug}/comments", func(w http.ResponseWriter, r *http.Request) {
		comments, err := deps.Articles.Comments(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			writeFailure(w, r, log, "list comments failed", err)
			return
		}
		writeJSON(w, http.StatusOK, comments)
	})

	r.Get("/tags", func(w http.ResponseWriter, r *http.Request) {
		tags, err := deps.Articles.Tags(r.Context())
		if err != nil {
			writeFailure(w, r, log, "list tags failed", err)
			return
		}
		writeJSON(w, http.StatusOK, tags)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireViewer)

		r.Post("/articles", func(w http.ResponseWriter, r *http.Request) {
			var req articles.Input
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			author := viewer(r)
			action := "article.create"
			if req.Slug != "" {
				action = "article.update"
			}
			slug, err := deps.Articles.Save(r.Context(), author, req)
			if err != nil {
				var verr *articles.ValidationError
				switch {
				case errors.As(err, &verr):
					writeStatus(w, http.StatusOK, statusValidationError, verr.Message)
				case errors.Is(err, articles.ErrNotFound):
					auditReq(deps.Audit, r, author, action, req.Slug, audit.OutcomeDenied, "not the author or missing")
					writeError(w, http.StatusNotFound, articleNotFound)
				default:
					writeFailure(w, r, log, "save article failed", err)
				}
				return
			}
			auditReq(deps.Audit, r, author, action, slug, audit.OutcomeSuccess, "")
			writeJSON(w, http.StatusOK, map[string]string{"status": statusSuccess, "slug": slug})
		})

		r.Post("/articles/{slug}/delete", func(w http.ResponseWriter, r *http.Request) {
			slug := chi.URLParam(r, "slug")
			if err := deps.Articles.Delete(r.Context(), viewer(r), slug); err != nil {
				if errors.Is(err, articles.ErrNotFound) {
					auditReq(deps.Audit, r, viewer(r), "article.delete", slug, audit.OutcomeDenied, "not the author or missing")
					writeError(w, http.StatusNotFound, articleNotFound)
					return
				}
				writeFailure(w, r, log, "delete article failed", err)
				return
			}
			auditReq(deps.Audit, r, viewer(r), "article.delete", slug, audit.OutcomeSuccess, "")
			writeStatus(w, http.StatusOK, statusSuccess, "")
		})

		r.Post("/articles/{slug}/comments", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Body string `json:"body"`
			}
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			slug := chi.URLParam(r, "slug")
			c, err := deps.Articles.AddComment(r.Context(), viewer(r), slug, req.Body)
			if err != nil {
				var verr *articles.ValidationError
				switch {
				case errors.As(err, &verr):
					writeStatus(w, http.StatusOK, statusValidationError, verr.Message)
				case errors.Is(err, articles.ErrNotFound):
					writeError(w, http.StatusNotFound, articleNotFound)
				default:
					writeFailure(w, r, log, "add comment failed", err)
				}
				return
			}
			auditReq(deps.Audit, r, viewer(r), "comment.create", strconv.FormatInt(c.ID, 10), audit.OutcomeSuccess, slug)
			writeJSON(w, http.StatusOK, c)
		})

		r.Post("/comments/{id}/delete", func(w http.ResponseWriter, r *http.Request) {
			raw := chi.URLParam(r, "id")
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusNotFound, "could not find the comment")
				return
			}
			if err := deps.Articles.DeleteComment(r.Context(), viewer(r), id); err != nil {
				if errors.Is(err, articles.ErrNotFound) {
					auditReq(deps.Audit, r, viewer(r), "comment.delete", raw, audit.OutcomeDenied, "")
					writeError(w, http.StatusNotFound, "could not find the comment")
					return
				}
				writeFailure(w, r, log, "delete comment failed", err)
				return
			}
			auditReq(deps.Audit, r, viewer(r), "comment.delete", raw, audit.OutcomeSuccess, "")
			writeStatus(w, http.StatusOK, statusSuccess, "")
		})

		r.Post("/favorite", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Slug string `json:"slug"`
			}
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			st, err := deps.Articles.ToggleFavorite(r.Context(), viewer(r), req.Slug)
			if err != nil {
				if errors.Is(err, articles.ErrNotFound) {
					writeError(w, http.StatusNotFound, articleNotFound)
					return
				}
				writeFailure(w, r, log, "toggle favorite failed", err)
				return
			}
			writeJSON(w, http.StatusOK, st)
		})
	})
}
