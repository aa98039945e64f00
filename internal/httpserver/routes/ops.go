package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/dash/internal/httpserver/mw"
)

func init() { Register(registerOps) }

// registerOps mounts the operator endpoints. They sit outside /api, so they
// skip sessions and rate limiting, and share one network allow-list.
func registerOps(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))

		r.Get("/healthz", handlers.Healthz(d))
		r.Get("/readyz", handlers.Readyz(d))
		r.Get("/infra", handlers.Infra(d))
		r.Post("/sweep", handlers.Sweep(d))
	})
}
