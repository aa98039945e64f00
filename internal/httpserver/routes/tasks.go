package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/dash/internal/httpserver/mw"
)

func init() { RegisterAPI(registerTasks) }

func registerTasks(r chi.Router, d deps.Deps) {
	r.Route("/tasks", func(r chi.Router) {
		r.Use(mw.RequireSession(d.Auth, d.Logger))
		r.Get("/boards", handlers.ListBoards(d))
		r.Get("/boards/{boardID}/lists", handlers.ListLists(d))
		r.Get("/lists/{listID}/cards", handlers.ListCards(d))
		r.Post("/lists/{listID}/cards", handlers.CreateCard(d))
		r.Get("/cards/{cardID}", handlers.GetCard(d))
		r.Get("/due", handlers.DueCards(d))
	})
}
