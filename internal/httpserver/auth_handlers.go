package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"realworld/conduit/internal/audit"
	"realworld/conduit/internal/auth"
)

const (
	statusSuccess           = "success"
	statusUnauthorized      = "unauthorized"
	statusValidationError   = "validation_error"
	statusCreateUserError   = "create_user_error"
	statusPasswordsNotMatch = "passwords_not_match"

	resetRequestedMessage = "Check your email"
	resetFailedMessage    = "Something went wrong, try again later"
	resetDoneMessage      = "Password successfully reset, please, proceed to login"
)

func registerAuthHandlers(r chi.Router, deps Deps) {
	log := deps.Logger

	r.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		token, err := deps.Auth.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				deps.Metrics.CountAuth("login", audit.OutcomeFailure)
				auditReq(deps.Audit, r, req.Username, "auth.login", "", audit.OutcomeFailure, "invalid credentials")
				writeStatus(w, http.StatusUnauthorized, statusUnauthorized, "")
				return
			}
			writeFailure(w, r, log, "login failed", err)
			return
		}
		auth.AttachCookie(w, token)
		deps.Metrics.CountAuth("login", audit.OutcomeSuccess)
		auditReq(deps.Audit, r, req.Username, "auth.login", "", audit.OutcomeSuccess, "")
		writeStatus(w, http.StatusOK, statusSuccess, "")
	})

	r.Post("/signup", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		token, err := deps.Auth.Signup(r.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			deps.Metrics.CountAuth("signup", audit.OutcomeFailure)
			var verr *auth.ValidationError
			switch {
			case errors.As(err, &verr):
				writeStatus(w, http.StatusOK, statusValidationError, verr.Message)
			case errors.Is(err, auth.ErrDuplicateEmail):
				auditReq(deps.Audit, r, req.Username, "auth.signup", "", audit.OutcomeFailure, "duplicated email")
				writeStatus(w, http.StatusOK, statusCreateUserError, "Duplicated email")
			case errors.Is(err, auth.ErrDuplicateUsername):
				auditReq(deps.Audit, r, req.Username, "auth.signup", "", audit.OutcomeFailure, "duplicated user")
				writeStatus(w, http.StatusOK, statusCreateUserError, "Duplicated user")
			default:
				log.Error("signup failed", "username", req.Username, slog.Any("err", err))
				writeStatus(w, http.StatusInternalServerError, statusCreateUserError, genericFailure)
			}
			return
		}
		auth.AttachCookie(w, token)
		deps.Metrics.CountAuth("signup", audit.OutcomeSuccess)
		auditReq(deps.Audit, r, req.Username, "auth.signup", req.Username, audit.OutcomeSuccess, "")
		writeStatus(w, http.StatusOK, statusSuccess, "")
	})

	r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
		auth.ClearCookie(w)
		if v := viewer(r); v != "" {
			deps.Metrics.CountAuth("logout", audit.OutcomeSuccess)
			auditReq(deps.Audit, r, v, "auth.logout", "", audit.OutcomeSuccess, "")
		}
		writeStatus(w, http.StatusOK, statusSuccess, "")
	})

	r.Post("/reset_password/request", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := deps.Auth.RequestPasswordReset(r.Context(), req.Email, linkBase(deps.PublicBaseURL, r)); err != nil {
			log.Error("password reset request failed", "request_id", requestIDFromContext(r.Context()), slog.Any("err", err))
		}
		auditReq(deps.Audit, r, "", "auth.reset_request", "", audit.OutcomeSuccess, "")
		writeJSON(w, http.StatusOK, map[string]string{"message": resetRequestedMessage})
	})

	r.Post("/reset_password/confirm", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token    string `json:"token"`
			Password string `json:"password"`
			Confirm  string `json:"confirm"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		err := deps.Auth.ResetPassword(r.Context(), req.Token, req.Password, req.Confirm)
		if err != nil {
			deps.Metrics.CountAuth("reset_password", audit.OutcomeFailure)
			auditReq(deps.Audit, r, "", "auth.reset_password", "", audit.OutcomeFailure, "")
			var verr *auth.ValidationError
			switch {
			case errors.As(err, &verr):
				writeJSON(w, http.StatusOK, map[string]string{"message": verr.Message})
			case errors.Is(err, auth.ErrPasswordsNotMatch), errors.Is(err, auth.ErrInvalidToken):
				writeJSON(w, http.StatusOK, map[string]string{"message": resetFailedMessage})
			default:
				log.Error("password reset failed", "request_id", requestIDFromContext(r.Context()), slog.Any("err", err))
				writeJSON(w, http.StatusOK, map[string]string{"message": resetFailedMessage})
			}
			return
		}
		deps.Metrics.CountAuth("reset_password", audit.OutcomeSuccess)
		auditReq(deps.Audit, r, "", "auth.reset_password", "", audit.OutcomeSuccess, "")
		writeJSON(w, http.StatusOK, map[string]string{"message": resetDoneMessage})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireViewer)

		r.Get("/user", func(w http.ResponseWriter, r *http.Request) {
			u, err := deps.Auth.CurrentUser(r.Context(), viewer(r))
			if err != nil {
				if errors.Is(err, auth.ErrUserNotFound) {
					writeError(w, http.StatusNotFound, "could not find the user")
					return
				}
				writeFailure(w, r, log, "load current user failed", err)
				return
			}
			writeJSON(w, http.StatusOK, u)
		})

		r.Post("/settings", func(w http.ResponseWriter, r *http.Request) {
			var req auth.SettingsInput
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			username := viewer(r)
			err := deps.Auth.UpdateSettings(r.Context(), username, req)
			if err != nil {
				var verr *auth.ValidationError
				switch {
				case errors.Is(err, auth.ErrPasswordsNotMatch):
					writeStatus(w, http.StatusOK, statusPasswordsNotMatch, "Passwords do not match")
				case errors.As(err, &verr):
					writeStatus(w, http.StatusOK, statusValidationError, verr.Message)
				default:
					writeFailure(w, r, log, "update settings failed", err)
				}
				return
			}
			auditReq(deps.Audit, r, username, "user.settings", username, audit.OutcomeSuccess, "")
			writeStatus(w, http.StatusOK, statusSuccess, "")
		})
	})
}
