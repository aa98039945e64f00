package sqlite

import (
	"time"

	"github.com/MrSnakeDoc/dash/internal/domain"
)

type userModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

func (userModel) TableName() string { return "users" }

type credentialModel struct {
	UserID       int64  `gorm:"primaryKey;autoIncrement:false"`
	Service      string `gorm:"primaryKey"`
	Token        string
	Connected    bool
	ExpiresAt    *time.Time
	LastSyncedAt *time.Time
	Config       map[string]string `gorm:"serializer:json"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (credentialModel) TableName() string { return "credentials" }

type widgetModel struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"index;not null"`
	Type      string
	Name      string
	Config    map[string]any `gorm:"serializer:json"`
	Position  int
	GridX     int
	GridY     int
	GridW     int
	GridH     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (widgetModel) TableName() string { return "widgets" }

type sessionModel struct {
	Token     string `gorm:"primaryKey"`
	UserID    int64  `gorm:"index;not null"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
}

func (sessionModel) TableName() string { return "sessions" }

func (m *userModel) toDomain() *domain.User {
	return &domain.User{ID: m.ID, Email: m.Email, Name: m.Name, PasswordHash: m.PasswordHash, CreatedAt: m.CreatedAt}
}

func credentialFromDomain(c *domain.Credential) *credentialModel {
	return &credentialModel{
		UserID:       c.UserID,
		Service:      string(c.Service),
		Token:        c.Token,
		Connected:    c.Connected,
		ExpiresAt:    c.ExpiresAt,
		LastSyncedAt: c.LastSyncedAt,
		Config:       c.Config,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (m *credentialModel) toDomain() *domain.Credential {
	return &domain.Credential{
		UserID:       m.UserID,
		Service:      domain.ServiceType(m.Service),
		Token:        m.Token,
		Connected:    m.Connected,
		ExpiresAt:    m.ExpiresAt,
		LastSyncedAt: m.LastSyncedAt,
		Config:       m.Config,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func widgetFromDomain(w *domain.Widget) *widgetModel {
	return &widgetModel{
		ID:        w.ID,
		UserID:    w.UserID,
		Type:      w.Type,
		Name:      w.Name,
		Config:    w.Config,
		Position:  w.Position,
		GridX:     w.Grid.X,
		GridY:     w.Grid.Y,
		GridW:     w.Grid.W,
		GridH:     w.Grid.H,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func (m *widgetModel) toDomain() *domain.Widget {
	cfg := m.Config
	if cfg == nil {
		cfg = map[string]any{}
	}
	return &domain.Widget{
		ID:        m.ID,
		UserID:    m.UserID,
		Type:      m.Type,
		Name:      m.Name,
		Config:    cfg,
		Position:  m.Position,
		Grid:      domain.GridRect{X: m.GridX, Y: m.GridY, W: m.GridW, H: m.GridH},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
