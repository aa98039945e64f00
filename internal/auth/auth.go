// Package auth handles accounts, password checks and cookie sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/logger"
	"github.com/MrSnakeDoc/dash/internal/sources/layout"
	"github.com/MrSnakeDoc/dash/internal/store"
)

const (
	// CookieName is the session cookie set on login.
	CookieName = "dash_session"

	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8

	// DefaultSessionTTL applies when the manager is built with a zero TTL.
	DefaultSessionTTL = 7 * 24 * time.Hour
)

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated is returned for missing, unknown or expired sessions.
	ErrUnauthenticated = errors.New("not authenticated")
)

// RegisterInput is a new account plus optional initial service tokens.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
	Tokens   map[domain.ServiceType]string
}

// Manager implements registration, login and session lookup on a repository.
type Manager struct {
	repo    store.Repository
	catalog *layout.Catalog
	ttl     time.Duration
	cost    int
	logger  logger.Logger
	now     func() time.Time
}

// NewManager creates a Manager. A nil catalog disables widget seeding.
func NewManager(repo store.Repository, catalog *layout.Catalog, ttl time.Duration, log logger.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Manager{
		repo:    repo,
		catalog: catalog,
		ttl:     ttl,
		cost:    bcrypt.DefaultCost,
		logger:  log,
		now:     time.Now,
	}
}

// TTL returns the lifetime given to new sessions.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Register creates the account, stores any supplied tokens as connected
// credentials, seeds the default widgets and opens a session.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (*domain.User, *domain.Session, error) {
	email := store.NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, nil, &domain.ValidationError{Field: "email", Reason: "not a valid address"}
	}
	if len(in.Password) < MinPasswordLength {
		return nil, nil, &domain.ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLength)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), m.cost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	user := &domain.User{Email: email, Name: name, PasswordHash: string(hash)}
	if err := m.repo.CreateUser(ctx, user); err != nil {
		return nil, nil, err
	}

	connected := m.storeInitialTokens(ctx, user.ID, in.Tokens)
	m.seedWidgets(ctx, user.ID, connected)

	sess, err := m.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	m.logger.Info("user registered",
		logger.Int64("user_id", user.ID),
		logger.Int("connected_services", len(connected)))
	return user, sess, nil
}

// storeInitialTokens saves one connected credential per non-empty token.
// Failures are logged and leave the service unconnected.
func (m *Manager) storeInitialTokens(ctx context.Context, userID int64, tokens map[domain.ServiceType]string) map[domain.ServiceType]bool {
	connected := make(map[domain.ServiceType]bool, len(tokens))
	for st, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		c := &domain.Credential{UserID: userID, Service: st, Token: token, Connected: true}
		if err := m.repo.UpsertCredential(ctx, c); err != nil {
			m.logger.Warn("failed to store initial credential",
				logger.Int64("user_id", userID),
				logger.String("service", string(st)),
				logger.Error(err))
			continue
		}
		connected[st] = true
	}
	return connected
}

func (m *Manager) seedWidgets(ctx context.Context, userID int64, connected map[domain.ServiceType]bool) {
	if m.catalog == nil {
		return
	}
	for _, w := range m.catalog.WidgetsFor(userID, connected) {
		if err := m.repo.CreateWidget(ctx, w); err != nil {
			m.logger.Warn("failed to seed widget",
				logger.Int64("user_id", userID),
				logger.String("type", w.Type),
				logger.Error(err))
		}
	}
}

// Login checks the password and opens a new session.
func (m *Manager) Login(ctx context.Context, email, password string) (*domain.User, *domain.Session, error) {
	user, err := m.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	sess, err := m.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, sess, nil
}

// Logout ends the session. Unknown tokens are not an error.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.repo.DeleteSession(ctx, token)
}

// Authenticate resolves a session token to its user.
func (m *Manager) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	sess, err := m.repo.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	user, err := m.repo.GetUser(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return user, nil
}

func (m *Manager) openSession(ctx context.Context, userID int64) (*domain.Session, error) {
	now := m.now()
	sess := &domain.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}
