package handlers

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/dash/internal/connector/notes"
	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
)

type pageRequest struct {
	Title    string `json:"title"`
	ParentID string `json:"parentId"`
}

func RecentPages(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryLimit(r, notes.DefaultRecentLimit, notes.MaxRecentLimit)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		n, err := notesFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, n.ListRecentPages(r.Context(), limit))
	}
}

func SearchPages(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := notesFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		writeJSON(w, http.StatusOK, n.SearchPages(r.Context(), query))
	}
}

func PageContent(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageID, err := pathParam(r, "pageID")
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		n, err := notesFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		content, err := n.GetPageContent(r.Context(), pageID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, content)
	}
}

func CreatePage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, r, d, &domain.MissingParameterError{Name: "title"})
			return
		}

		n, err := notesFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		page, err := n.CreatePage(r.Context(), strings.TrimSpace(req.Title), strings.TrimSpace(req.ParentID))
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		if page == nil {
			writeError(w, r, d, errUpstreamFailed)
			return
		}
		writeJSON(w, http.StatusCreated, page)
	}
}
