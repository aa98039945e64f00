package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/dash/internal/httpserver/mw"
)

func init() { RegisterAPI(registerNotes) }

func registerNotes(r chi.Router, d deps.Deps) {
	r.Route("/notes", func(r chi.Router) {
		r.Use(mw.RequireSession(d.Auth, d.Logger))
		r.Get("/recent", handlers.RecentPages(d))
		r.Get("/search", handlers.SearchPages(d))
		r.Get("/pages/{pageID}", handlers.PageContent(d))
		r.Post("/pages", handlers.CreatePage(d))
	})
}
