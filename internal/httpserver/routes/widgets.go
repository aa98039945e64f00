package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/dash/internal/httpserver/mw"
)

func init() { RegisterAPI(registerWidgets) }

func registerWidgets(r chi.Router, d deps.Deps) {
	r.Route("/widgets", func(r chi.Router) {
		r.Use(mw.RequireSession(d.Auth, d.Logger))
		r.Get("/", handlers.ListWidgets(d))
		r.Post("/", handlers.CreateWidget(d))
		r.Post("/reorder", handlers.ReorderWidgets(d))
		r.Get("/{id}", handlers.GetWidget(d))
		r.Patch("/{id}", handlers.UpdateWidget(d))
		r.Delete("/{id}", handlers.DeleteWidget(d))
	})
}
