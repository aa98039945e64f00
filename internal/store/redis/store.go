package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/store"
)

// Store persists records as JSON values, with per-user id sets as indexes.
type Store struct {
	client *redis.Client
	now    func() time.Time
}

// NewStore creates a Redis-backed repository on an established client.
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		now:    time.Now,
	}
}

var _ store.Repository = (*Store)(nil)

func (s *Store) Name() string { return "redis" }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

// getJSON loads key into out. A missing key is domain.ErrNotFound.
func (s *Store) getJSON(ctx context.Context, key string, out any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// mgetJSON loads keys in one round trip, calling decode for every key that exists.
func (s *Store) mgetJSON(ctx context.Context, keys []string, decode func(data []byte) error) error {
	if len(keys) == 0 {
		return nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// Index entry without a record; skip it
			continue
		}
		if err := decode([]byte(str)); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
	}
	return nil
}
