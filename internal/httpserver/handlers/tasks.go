package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

const defaultDueDays = 7

type cardRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Due         *time.Time `json:"due"`
}

func ListBoards(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tb, _, err := taskBoardFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, tb.ListBoards(r.Context()))
	}
}

func ListLists(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		boardID, err := pathParam(r, "boardID")
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		tb, _, err := taskBoardFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, tb.ListLists(r.Context(), boardID))
	}
}

func ListCards(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := pathParam(r, "listID")
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		tb, _, err := taskBoardFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, tb.ListCardsOnList(r.Context(), listID))
	}
}

func GetCard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cardID, err := pathParam(r, "cardID")
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		tb, _, err := taskBoardFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		card, err := tb.GetCard(r.Context(), cardID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func CreateCard(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listID, err := pathParam(r, "listID")
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		var req cardRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, r, d, &domain.MissingParameterError{Name: "name"})
			return
		}

		tb, _, err := taskBoardFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		card, ok := tb.CreateCard(r.Context(), listID, domain.CardInput{
			Name:        strings.TrimSpace(req.Name),
			Description: req.Description,
			Due:         req.Due,
		})
		if !ok {
			writeError(w, r, d, errUpstreamFailed)
			return
		}
		writeJSON(w, http.StatusCreated, card)
	}
}

// DueCards lists cards due between now and now+days across all boards.
func DueCards(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days, err := queryInt(r, "days", defaultDueDays)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		tb, _, err := taskBoardFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		cards := tb.ListCardsDueWithin(r.Context(), days)
		d.Logger.Debug("due cards listed",
			logger.Int("days", days),
			logger.Int("count", len(cards)))
		writeJSON(w, http.StatusOK, cards)
	}
}
