package mw

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/dash/internal/auth"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

// RequireSession rejects requests without a valid session and stores the
// session's user in the request context.
func RequireSession(a *auth.Manager, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := a.Authenticate(r.Context(), auth.TokenFromRequest(r))
			if err != nil {
				if !errors.Is(err, auth.ErrUnauthenticated) {
					log.Error("session lookup failed",
						logger.String("path", r.URL.Path),
						logger.Error(err))
					writeJSONError(w, http.StatusInternalServerError, "internal error")
					return
				}
				writeJSONError(w, http.StatusUnauthorized, err.Error())
				return
			}

			noteUser(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
