package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/dash/internal/connector"
	"github.com/MrSnakeDoc/dash/internal/connector/mail"
	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

type mailTaskRequest struct {
	ListID string `json:"listId"`
}

type mailTaskResponse struct {
	Card   *domain.TaskCard `json:"card"`
	ListID string           `json:"listId"`
}

func RecentMail(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryLimit(r, mail.DefaultLimit, mail.MaxLimit)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		m, _, err := mailFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, m.ListRecent(r.Context(), limit))
	}
}

func UnreadMail(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryLimit(r, mail.DefaultLimit, mail.MaxLimit)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		m, _, err := mailFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, m.ListUnread(r.Context(), limit))
	}
}

func SearchMail(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryLimit(r, mail.DefaultLimit, mail.MaxLimit)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			writeError(w, r, d, &domain.MissingParameterError{Name: "q"})
			return
		}
		m, _, err := mailFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, m.Search(r.Context(), query, limit))
	}
}

func GetMail(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathParam(r, "messageID")
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		m, _, err := mailFor(r.Context(), d, currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		msg, err := m.GetMessage(r.Context(), id)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

// MailToTask turns a message into a card. Both mail and the task board
// must be connected.
func MailToTask(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		id, err := pathParam(r, "messageID")
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		var req mailTaskRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}

		m, mailCred, err := mailFor(r.Context(), d, user.ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		tb, boardCred, err := taskBoardFor(r.Context(), d, user.ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		listID := resolveTargetList(r.Context(), tb, strings.TrimSpace(req.ListID), boardCred, mailCred)
		if listID == "" {
			writeError(w, r, d, errNoTargetList)
			return
		}

		card, ok := m.CreateTaskFromMessage(r.Context(), id, tb, listID)
		if !ok {
			writeError(w, r, d, errUpstreamFailed)
			return
		}

		d.Logger.Info("task created from email",
			logger.Int64("user_id", user.ID),
			logger.String("message_id", id),
			logger.String("list_id", listID),
			logger.String("card_id", card.ID))
		writeJSON(w, http.StatusCreated, mailTaskResponse{Card: card, ListID: listID})
	}
}

// resolveTargetList picks the list for an email-derived task: the explicit
// id, then the configured default, then the first list of the first board.
func resolveTargetList(ctx context.Context, tb connector.TaskBoard, explicit string, creds ...*domain.Credential) string {
	if explicit != "" {
		return explicit
	}
	for _, c := range creds {
		if id := strings.TrimSpace(c.ConfigValue(domain.ConfigDefaultListID)); id != "" {
			return id
		}
	}

	boards := tb.ListBoards(ctx)
	if len(boards) == 0 {
		return ""
	}
	lists := tb.ListLists(ctx, boards[0].ID)
	if len(lists) == 0 {
		return ""
	}
	return lists[0].ID
}
