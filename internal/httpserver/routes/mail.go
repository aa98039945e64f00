package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/dash/internal/httpserver/mw"
)

func init() { RegisterAPI(registerMail) }

func registerMail(r chi.Router, d deps.Deps) {
	r.Route("/mail", func(r chi.Router) {
		r.Use(mw.RequireSession(d.Auth, d.Logger))
		r.Get("/recent", handlers.RecentMail(d))
		r.Get("/unread", handlers.UnreadMail(d))
		r.Get("/search", handlers.SearchMail(d))
		r.Get("/{messageID}", handlers.GetMail(d))
		r.Post("/{messageID}/task", handlers.MailToTask(d))
	})
}
