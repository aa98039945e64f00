package domain

import "time"

// GridRect is a widget's placement on the dashboard grid, in cells.
type GridRect struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// DefaultGrid is a unit cell at the origin.
func DefaultGrid() GridRect {
	return GridRect{X: 0, Y: 0, W: 1, H: 1}
}

// Normalize clamps the rectangle to a valid placement.
func (g GridRect) Normalize() GridRect {
	if g.X < 0 {
		g.X = 0
	}
	if g.Y < 0 {
		g.Y = 0
	}
	if g.W < 1 {
		g.W = 1
	}
	if g.H < 1 {
		g.H = 1
	}
	return g
}

// Widget is a saved UI panel configuration.
//
// A widget is owned exclusively by one user. Its grid rectangle is always
// present; callers that omit it get DefaultGrid.
type Widget struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	ID     int64 `json:"id"`
	UserID int64 `json:"userId"`

	// ─────────────────────────────
	// Appearance & behavior
	// ─────────────────────────────

	// Type selects the renderer, e.g. "tasks-due", "notes-recent", "mail-unread".
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config"`

	// ─────────────────────────────
	// Layout
	// ─────────────────────────────

	Position int      `json:"position"`
	Grid     GridRect `json:"grid"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep-enough copy for stores that hand out records.
func (w *Widget) Clone() *Widget {
	cp := *w
	if w.Config != nil {
		cp.Config = make(map[string]any, len(w.Config))
		for k, v := range w.Config {
			cp.Config[k] = v
		}
	}
	return &cp
}
