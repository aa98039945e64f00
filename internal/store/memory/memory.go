// Package memory is the in-process Repository. Records are lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/store"
)

type credentialKey struct {
	userID  int64
	service domain.ServiceType
}

// Store keeps every record in maps guarded by one RWMutex.
// Records are copied in and out so callers never share memory with it.
type Store struct {
	mu sync.RWMutex

	users       map[int64]*domain.User
	usersByMail map[string]int64
	credentials map[credentialKey]*domain.Credential
	widgets     map[int64]*domain.Widget
	sessions    map[string]*domain.Session

	lastUserID   int64
	lastWidgetID int64

	now func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:       make(map[int64]*domain.User),
		usersByMail: make(map[string]int64),
		credentials: make(map[credentialKey]*domain.Credential),
		widgets:     make(map[int64]*domain.Widget),
		sessions:    make(map[string]*domain.Session),
		now:         time.Now,
	}
}

var _ store.Repository = (*Store)(nil)

func (s *Store) Name() string { return "memory" }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// ─────────────────────────────────────────────────────────────────
// Users
// ─────────────────────────────────────────────────────────────────

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := store.NormalizeEmail(u.Email)
	if _, taken := s.usersByMail[email]; taken {
		return domain.ErrConflict
	}

	s.lastUserID++
	u.ID = s.lastUserID
	u.Email = email
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}

	cp := *u
	s.users[u.ID] = &cp
	s.usersByMail[email] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByMail[store.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

// ─────────────────────────────────────────────────────────────────
// Credentials
// ─────────────────────────────────────────────────────────────────

func (s *Store) UpsertCredential(_ context.Context, c *domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credentialKey{c.UserID, c.Service}
	now := s.now()
	if existing, ok := s.credentials[key]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	s.credentials[key] = copyCredential(c)
	return nil
}

func (s *Store) GetCredential(_ context.Context, userID int64, service domain.ServiceType) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[credentialKey{userID, service}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyCredential(c), nil
}

func (s *Store) ListCredentials(_ context.Context, userID int64) ([]*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Credential, 0, len(domain.AllServiceTypes()))
	for key, c := range s.credentials {
		if key.userID == userID {
			out = append(out, copyCredential(c))
		}
	}
	store.SortCredentials(out)
	return out, nil
}

func (s *Store) ListAllCredentials(context.Context) ([]*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Credential, 0, len(s.credentials))
	for _, c := range s.credentials {
		out = append(out, copyCredential(c))
	}
	store.SortCredentials(out)
	return out, nil
}

func (s *Store) DisconnectExpiredCredential(_ context.Context, userID int64, service domain.ServiceType, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.credentials[credentialKey{userID, service}]
	if !ok || !c.Connected || !c.Expired(now) {
		return false, nil
	}
	c.Connected = false
	c.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) DeleteCredential(_ context.Context, userID int64, service domain.ServiceType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credentialKey{userID, service}
	if _, ok := s.credentials[key]; !ok {
		return domain.ErrNotFound
	}
	delete(s.credentials, key)
	return nil
}

func copyCredential(c *domain.Credential) *domain.Credential {
	cp := *c
	if c.Config != nil {
		cp.Config = make(map[string]string, len(c.Config))
		for k, v := range c.Config {
			cp.Config[k] = v
		}
	}
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		cp.ExpiresAt = &t
	}
	if c.LastSyncedAt != nil {
		t := *c.LastSyncedAt
		cp.LastSyncedAt = &t
	}
	return &cp
}

// ─────────────────────────────────────────────────────────────────
// Widgets
// ─────────────────────────────────────────────────────────────────

func (s *Store) CreateWidget(_ context.Context, w *domain.Widget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.Position < 0 {
		w.Position = store.NextPosition(s.userWidgets(w.UserID))
	}
	w.CreatedAt = time.Time{}
	store.PrepareWidget(w, s.now())

	s.lastWidgetID++
	w.ID = s.lastWidgetID
	s.widgets[w.ID] = w.Clone()
	return nil
}

func (s *Store) GetWidget(_ context.Context, userID, id int64) (*domain.Widget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.widgets[id]
	if !ok || w.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return w.Clone(), nil
}

func (s *Store) ListWidgets(_ context.Context, userID int64) ([]*domain.Widget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ws := s.userWidgets(userID)
	out := make([]*domain.Widget, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Clone())
	}
	store.SortWidgets(out)
	return out, nil
}

func (s *Store) UpdateWidget(_ context.Context, w *domain.Widget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.widgets[w.ID]
	if !ok || existing.UserID != w.UserID {
		return domain.ErrNotFound
	}
	w.CreatedAt = existing.CreatedAt
	store.PrepareWidget(w, s.now())
	s.widgets[w.ID] = w.Clone()
	return nil
}

func (s *Store) DeleteWidget(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.widgets[id]
	if !ok || w.UserID != userID {
		return domain.ErrNotFound
	}
	delete(s.widgets, id)
	return nil
}

func (s *Store) ReorderWidgets(_ context.Context, userID int64, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// ApplyOrder works on the stored records directly; the lock covers it.
	changed, err := store.ApplyOrder(s.userWidgets(userID), ids)
	if err != nil {
		return err
	}
	now := s.now()
	for _, w := range changed {
		w.UpdatedAt = now
	}
	return nil
}

// userWidgets returns the stored (not copied) widgets of userID. Callers hold the lock.
func (s *Store) userWidgets(userID int64) []*domain.Widget {
	ws := make([]*domain.Widget, 0)
	for _, w := range s.widgets {
		if w.UserID == userID {
			ws = append(ws, w)
		}
	}
	return ws
}

// ─────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────

func (s *Store) CreateSession(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	s.sessions[sess.Token] = &cp
	return nil
}

func (s *Store) GetSession(_ context.Context, token string) (*domain.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrNotFound
	}
	if sess.Expired(s.now()) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// DeleteExpiredSessions drops sessions that expired at or before now.
func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			n++
		}
	}
	return n, nil
}
