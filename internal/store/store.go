// Package store defines the record repository the HTTP layer and the
// background workers depend on. Backends live in subpackages.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/MrSnakeDoc/dash/internal/domain"
)

// Users stores dashboard accounts.
type Users interface {
	// CreateUser assigns u.ID and u.CreatedAt. A taken email is domain.ErrConflict.
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Credentials stores one credential per (user, service).
type Credentials interface {
	// UpsertCredential creates or replaces the credential for (c.UserID, c.Service).
	UpsertCredential(ctx context.Context, c *domain.Credential) error
	GetCredential(ctx context.Context, userID int64, service domain.ServiceType) (*domain.Credential, error)
	ListCredentials(ctx context.Context, userID int64) ([]*domain.Credential, error)
	ListAllCredentials(ctx context.Context) ([]*domain.Credential, error)
	// DisconnectExpiredCredential clears Connected on the stored credential
	// only if, at the time of the write, it is still connected and expired at
	// now. It reports whether it changed the record; a missing one is (false, nil).
	DisconnectExpiredCredential(ctx context.Context, userID int64, service domain.ServiceType, now time.Time) (bool, error)
	DeleteCredential(ctx context.Context, userID int64, service domain.ServiceType) error
}

// Widgets stores per-user widget configurations. Reads of another user's
// widget report domain.ErrNotFound.
type Widgets interface {
	// CreateWidget assigns w.ID and timestamps. A negative Position appends the widget.
	CreateWidget(ctx context.Context, w *domain.Widget) error
	GetWidget(ctx context.Context, userID, id int64) (*domain.Widget, error)
	// ListWidgets returns the user's widgets ordered by Position then ID.
	ListWidgets(ctx context.Context, userID int64) ([]*domain.Widget, error)
	UpdateWidget(ctx context.Context, w *domain.Widget) error
	DeleteWidget(ctx context.Context, userID, id int64) error
	// ReorderWidgets gives ids positions 0..n-1 in order; widgets not named
	// keep their relative order after them.
	ReorderWidgets(ctx context.Context, userID int64, ids []int64) error
}

// Sessions stores login sessions.
type Sessions interface {
	CreateSession(ctx context.Context, s *domain.Session) error
	// GetSession reports domain.ErrNotFound for unknown or expired tokens.
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// Repository is the full set of records, backed by one store.
type Repository interface {
	Users
	Credentials
	Widgets
	Sessions

	// Name identifies the backend ("memory", "redis", "sqlite").
	Name() string
	Ping(ctx context.Context) error
	Close() error
}

// SessionPurger is implemented by backends whose sessions do not expire on their own.
type SessionPurger interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// NormalizeEmail is the canonical form used for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PrepareWidget fills defaults before a widget is persisted.
func PrepareWidget(w *domain.Widget, now time.Time) {
	w.Grid = w.Grid.Normalize()
	if w.Config == nil {
		w.Config = map[string]any{}
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
}

// SortWidgets orders widgets by Position, then ID.
func SortWidgets(ws []*domain.Widget) {
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].Position != ws[j].Position {
			return ws[i].Position < ws[j].Position
		}
		return ws[i].ID < ws[j].ID
	})
}

// NextPosition returns the position that appends a widget after ws.
func NextPosition(ws []*domain.Widget) int {
	next := 0
	for _, w := range ws {
		if w.Position >= next {
			next = w.Position + 1
		}
	}
	return next
}

// ApplyOrder rewrites the Position of ws (one user's widgets) so that ids
// come first in the given order. An id the user does not own, or a
// duplicate, is a *domain.ValidationError. It returns the widgets whose
// position changed.
func ApplyOrder(ws []*domain.Widget, ids []int64) ([]*domain.Widget, error) {
	byID := make(map[int64]*domain.Widget, len(ws))
	for _, w := range ws {
		byID[w.ID] = w
	}

	seen := make(map[int64]bool, len(ids))
	ordered := make([]*domain.Widget, 0, len(ws))
	for _, id := range ids {
		w, ok := byID[id]
		if !ok {
			return nil, &domain.ValidationError{Field: "ids", Reason: fmt.Sprintf("unknown widget %d", id)}
		}
		if seen[id] {
			return nil, &domain.ValidationError{Field: "ids", Reason: fmt.Sprintf("duplicate widget %d", id)}
		}
		seen[id] = true
		ordered = append(ordered, w)
	}

	rest := make([]*domain.Widget, 0, len(ws)-len(ordered))
	for _, w := range ws {
		if !seen[w.ID] {
			rest = append(rest, w)
		}
	}
	SortWidgets(rest)
	ordered = append(ordered, rest...)

	changed := make([]*domain.Widget, 0, len(ordered))
	for pos, w := range ordered {
		if w.Position != pos {
			w.Position = pos
			changed = append(changed, w)
		}
	}
	return changed, nil
}

// SortCredentials orders credentials by service display order.
func SortCredentials(cs []*domain.Credential) {
	rank := make(map[domain.ServiceType]int)
	for i, st := range domain.AllServiceTypes() {
		rank[st] = i
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].UserID != cs[j].UserID {
			return cs[i].UserID < cs[j].UserID
		}
		return rank[cs[i].Service] < rank[cs[j].Service]
	})
}
