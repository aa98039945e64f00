package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/dash/internal/httpserver/mw"
)

func init() { RegisterAPI(registerIntegrations) }

func registerIntegrations(r chi.Router, d deps.Deps) {
	r.Route("/integrations", func(r chi.Router) {
		r.Use(mw.RequireSession(d.Auth, d.Logger))
		r.Get("/", handlers.ListIntegrations(d))
		r.Put("/{service}", handlers.PutIntegration(d))
		r.Delete("/{service}", handlers.DeleteIntegration(d))
		r.Post("/{service}/test", handlers.TestIntegration(d))
	})
}
