// Package sqlite is the single-file persistent Repository, built on gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/store"
)

// Store is a Repository on a gorm connection.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var _ store.Repository = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&userModel{}, &credentialModel{}, &widgetModel{}, &sessionModel{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Name() string { return "sqlite" }

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// notFound maps gorm's sentinel onto the domain one.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ─────────────────────────────────────────────────────────────────
// Users
// ─────────────────────────────────────────────────────────────────

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	m := &userModel{
		Email:        store.NormalizeEmail(u.Email),
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}

	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		if isDuplicate(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	u.ID = m.ID
	u.Email = m.Email
	u.CreatedAt = m.CreatedAt
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var m userModel
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return m.toDomain(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m userModel
	if err := s.db.WithContext(ctx).Where("email = ?", store.NormalizeEmail(email)).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.toDomain(), nil
}

// ─────────────────────────────────────────────────────────────────
// Credentials
// ─────────────────────────────────────────────────────────────────

func (s *Store) UpsertCredential(ctx context.Context, c *domain.Credential) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing credentialModel
		err := tx.Where("user_id = ? AND service = ?", c.UserID, string(c.Service)).First(&existing).Error
		switch {
		case err == nil:
			c.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			if c.CreatedAt.IsZero() {
				c.CreatedAt = s.now()
			}
		default:
			return fmt.Errorf("failed to load credential: %w", err)
		}
		c.UpdatedAt = s.now()

		m := credentialFromDomain(c)
		if err == nil {
			return tx.Save(m).Error
		}
		return tx.Create(m).Error
	})
}

func (s *Store) DisconnectExpiredCredential(ctx context.Context, userID int64, service domain.ServiceType, now time.Time) (bool, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m credentialModel
		err := tx.Where("user_id = ? AND service = ?", userID, string(service)).First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load credential: %w", err)
		}
		if !m.Connected || !m.toDomain().Expired(now) {
			return nil
		}

		res := tx.Model(&credentialModel{}).
			Where("user_id = ? AND service = ? AND connected = ?", userID, string(service), true).
			Updates(map[string]any{"connected": false, "updated_at": s.now()})
		if res.Error != nil {
			return fmt.Errorf("failed to disconnect credential: %w", res.Error)
		}
		changed = res.RowsAffected > 0
		return nil
	})
	return changed, err
}

func (s *Store) GetCredential(ctx context.Context, userID int64, service domain.ServiceType) (*domain.Credential, error) {
	var m credentialModel
	err := s.db.WithContext(ctx).Where("user_id = ? AND service = ?", userID, string(service)).First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return m.toDomain(), nil
}

func (s *Store) ListCredentials(ctx context.Context, userID int64) ([]*domain.Credential, error) {
	var ms []credentialModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return toCredentials(ms), nil
}

func (s *Store) ListAllCredentials(ctx context.Context) ([]*domain.Credential, error) {
	var ms []credentialModel
	if err := s.db.WithContext(ctx).Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return toCredentials(ms), nil
}

func toCredentials(ms []credentialModel) []*domain.Credential {
	out := make([]*domain.Credential, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toDomain())
	}
	store.SortCredentials(out)
	return out
}

func (s *Store) DeleteCredential(ctx context.Context, userID int64, service domain.ServiceType) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND service = ?", userID, string(service)).
		Delete(&credentialModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete credential: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Widgets
// ─────────────────────────────────────────────────────────────────

func (s *Store) CreateWidget(ctx context.Context, w *domain.Widget) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if w.Position < 0 {
			var next int
			err := tx.Model(&widgetModel{}).
				Where("user_id = ?", w.UserID).
				Select("COALESCE(MAX(position) + 1, 0)").
				Scan(&next).Error
			if err != nil {
				return fmt.Errorf("failed to compute widget position: %w", err)
			}
			w.Position = next
		}

		w.ID = 0
		w.CreatedAt = time.Time{}
		store.PrepareWidget(w, s.now())

		m := widgetFromDomain(w)
		if err := tx.Create(m).Error; err != nil {
			return fmt.Errorf("failed to create widget: %w", err)
		}
		w.ID = m.ID
		return nil
	})
}

func (s *Store) GetWidget(ctx context.Context, userID, id int64) (*domain.Widget, error) {
	var m widgetModel
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.toDomain(), nil
}

func (s *Store) ListWidgets(ctx context.Context, userID int64) ([]*domain.Widget, error) {
	var ms []widgetModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("position, id").Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("failed to list widgets: %w", err)
	}
	out := make([]*domain.Widget, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toDomain())
	}
	return out, nil
}

func (s *Store) UpdateWidget(ctx context.Context, w *domain.Widget) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing widgetModel
		if err := tx.Where("id = ? AND user_id = ?", w.ID, w.UserID).First(&existing).Error; err != nil {
			return notFound(err)
		}
		w.CreatedAt = existing.CreatedAt
		store.PrepareWidget(w, s.now())
		return tx.Save(widgetFromDomain(w)).Error
	})
}

func (s *Store) DeleteWidget(ctx context.Context, userID, id int64) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&widgetModel{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete widget: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) ReorderWidgets(ctx context.Context, userID int64, ids []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ms []widgetModel
		if err := tx.Where("user_id = ?", userID).Find(&ms).Error; err != nil {
			return fmt.Errorf("failed to list widgets: %w", err)
		}
		ws := make([]*domain.Widget, 0, len(ms))
		for i := range ms {
			ws = append(ws, ms[i].toDomain())
		}

		changed, err := store.ApplyOrder(ws, ids)
		if err != nil {
			return err
		}

		now := s.now()
		for _, w := range changed {
			err := tx.Model(&widgetModel{}).
				Where("id = ?", w.ID).
				Updates(map[string]any{"position": w.Position, "updated_at": now}).Error
			if err != nil {
				return fmt.Errorf("failed to move widget %d: %w", w.ID, err)
			}
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────
// Sessions
// ─────────────────────────────────────────────────────────────────

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	m := &sessionModel{Token: sess.Token, UserID: sess.UserID, CreatedAt: sess.CreatedAt, ExpiresAt: sess.ExpiresAt}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	var m sessionModel
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	sess := &domain.Session{Token: m.Token, UserID: m.UserID, CreatedAt: m.CreatedAt, ExpiresAt: m.ExpiresAt}
	if sess.Expired(s.now()) {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if err := s.db.WithContext(ctx).Where("token = ?", token).Delete(&sessionModel{}).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now and
// returns how many were removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&sessionModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
