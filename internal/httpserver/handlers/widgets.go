package handlers

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/dash/internal/logger"
)

type widgetRequest struct {
	Type     *string          `json:"type"`
	Name     *string          `json:"name"`
	Config   map[string]any   `json:"config"`
	Position *int             `json:"position"`
	Grid     *domain.GridRect `json:"grid"`
}

type reorderRequest struct {
	IDs []int64 `json:"ids"`
}

func ListWidgets(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := d.Store.ListWidgets(r.Context(), currentUser(r).ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, ws)
	}
}

// CreateWidget appends the widget unless a position is given. A missing
// grid becomes the default unit cell.
func CreateWidget(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)

		var req widgetRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		if req.Type == nil || strings.TrimSpace(*req.Type) == "" {
			writeError(w, r, d, &domain.MissingParameterError{Name: "type"})
			return
		}

		widget := &domain.Widget{
			UserID:   user.ID,
			Type:     strings.TrimSpace(*req.Type),
			Config:   req.Config,
			Position: -1,
			Grid:     domain.DefaultGrid(),
		}
		widget.Name = widget.Type
		if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
			widget.Name = strings.TrimSpace(*req.Name)
		}
		if req.Position != nil {
			widget.Position = *req.Position
		}
		if req.Grid != nil {
			widget.Grid = *req.Grid
		}

		if err := d.Store.CreateWidget(r.Context(), widget); err != nil {
			writeError(w, r, d, err)
			return
		}

		d.Logger.Debug("widget created",
			logger.Int64("user_id", user.ID),
			logger.Int64("widget_id", widget.ID),
			logger.String("type", widget.Type))
		writeJSON(w, http.StatusCreated, widget)
	}
}

func GetWidget(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		widget, err := d.Store.GetWidget(r.Context(), currentUser(r).ID, id)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, widget)
	}
}

// UpdateWidget applies the fields present in the body.
func UpdateWidget(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		var req widgetRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}

		widget, err := d.Store.GetWidget(r.Context(), user.ID, id)
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		if req.Type != nil {
			if t := strings.TrimSpace(*req.Type); t != "" {
				widget.Type = t
			}
		}
		if req.Name != nil {
			widget.Name = strings.TrimSpace(*req.Name)
		}
		if req.Config != nil {
			widget.Config = req.Config
		}
		if req.Position != nil {
			if *req.Position < 0 {
				writeError(w, r, d, &domain.ValidationError{Field: "position", Reason: "must not be negative"})
				return
			}
			widget.Position = *req.Position
		}
		if req.Grid != nil {
			widget.Grid = *req.Grid
		}

		if err := d.Store.UpdateWidget(r.Context(), widget); err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, widget)
	}
}

func DeleteWidget(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, d, err)
			return
		}

		if err := d.Store.DeleteWidget(r.Context(), currentUser(r).ID, id); err != nil {
			writeError(w, r, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ReorderWidgets returns the user's widgets in their new order.
func ReorderWidgets(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := currentUser(r)

		var req reorderRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, d, err)
			return
		}
		if len(req.IDs) == 0 {
			writeError(w, r, d, &domain.MissingParameterError{Name: "ids"})
			return
		}

		if err := d.Store.ReorderWidgets(r.Context(), user.ID, req.IDs); err != nil {
			writeError(w, r, d, err)
			return
		}

		ws, err := d.Store.ListWidgets(r.Context(), user.ID)
		if err != nil {
			writeError(w, r, d, err)
			return
		}
		writeJSON(w, http.StatusOK, ws)
	}
}
