package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

// Sweep runs the credential sweeper immediately and reports what it changed.
func Sweep(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Sweeper == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "sweeper disabled"})
			return
		}

		d.Logger.Info("manual credential sweep triggered via endpoint",
			logger.String("remote_ip", r.RemoteAddr))

		res, err := d.Sweeper.Sweep(r.Context())
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
