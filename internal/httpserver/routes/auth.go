package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/dash/internal/httpserver/mw"
)

func init() { RegisterAPI(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", handlers.Register(d))
		r.Post("/login", handlers.Login(d))
		r.Post("/logout", handlers.Logout(d))
		r.With(mw.RequireSession(d.Auth, d.Logger)).Get("/me", handlers.Me(d))
	})
}
