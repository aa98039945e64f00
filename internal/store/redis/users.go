package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/store"
)

// userRecord carries the password hash, which domain.User hides from JSON.
type userRecord struct {
	domain.User
	PasswordHash string `json:"passwordHash"`
}

// CreateUser reserves the email with SETNX so concurrent registrations
// cannot both succeed.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	email := store.NormalizeEmail(u.Email)

	id, err := s.client.Incr(ctx, keyUsersSeq).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate user id: %w", err)
	}

	reserved, err := s.client.SetNX(ctx, UserEmailKey(email), id, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve email: %w", err)
	}
	if !reserved {
		return domain.ErrConflict
	}

	u.ID = id
	u.Email = email
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}

	data, err := json.Marshal(userRecord{User: *u, PasswordHash: u.PasswordHash})
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := s.client.Set(ctx, UserKey(id), data, 0).Err(); err != nil {
		s.client.Del(ctx, UserEmailKey(email))
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var rec userRecord
	if err := s.getJSON(ctx, UserKey(id), &rec); err != nil {
		return nil, err
	}
	u := rec.User
	u.PasswordHash = rec.PasswordHash
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	raw, err := s.client.Get(ctx, UserEmailKey(store.NormalizeEmail(email))).Result()
	if err != nil {
		if isNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt email index for %s: %w", email, err)
	}
	return s.GetUser(ctx, id)
}
