package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/dash/internal/auth"
	"github.com/MrSnakeDoc/dash/internal/connector"
	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

type registerRequest struct {
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Password string            `json:"password"`
	Tokens   map[string]string `json:"tokens,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	User *domain.User `json:"user"`
}

func Register(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}

		tokens := make(map[domain.ServiceType]string, len(req.Tokens))
		for tag, token := range req.Tokens {
			st, ok := domain.ParseServiceType(tag)
			if !ok {
				writeError(w, r, d, &connector.UnsupportedServiceTypeError{Tag: tag})
				return
			}
			tokens[st] = token
		}

		user, sess, err := d.Auth.Register(r.Context(), auth.RegisterInput{
			Email:    req.Email,
			Name:     req.Name,
			Password: req.Password,
			Tokens:   tokens,
		})
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		setSessionCookie(w, d, sess)
		writeJSON(w, http.StatusCreated, userResponse{User: user})
	}
}

func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}

		user, sess, err := d.Auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			d.Logger.Info("login rejected", logger.Error(err))
			writeError(w, r, d, err)
			return
		}

		setSessionCookie(w, d, sess)
		writeJSON(w, http.StatusOK, userResponse{User: user})
	}
}

// Logout always clears the cookie, even for unknown sessions.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Auth.Logout(r.Context(), auth.TokenFromRequest(r)); err != nil {
			d.Logger.Warn("failed to delete session", logger.Error(err))
		}

		http.SetCookie(w, &http.Cookie{
			Name:     auth.CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   d.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func Me(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, userResponse{User: currentUser(r)})
	}
}

func setSessionCookie(w http.ResponseWriter, d deps.Deps, sess *domain.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   d.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
