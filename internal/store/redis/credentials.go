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

func (s *Store) UpsertCredential(ctx context.Context, c *domain.Credential) error {
	existing, err := s.GetCredential(ctx, c.UserID, c.Service)
	switch {
	case err == nil:
		c.CreatedAt = existing.CreatedAt
	case errors.Is(err, domain.ErrNotFound):
		if c.CreatedAt.IsZero() {
			c.CreatedAt = s.now()
		}
	default:
		return err
	}
	c.UpdatedAt = s.now()

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, CredentialKey(c.UserID, c.Service), data, 0)
	pipe.SAdd(ctx, UserCredentialsKey(c.UserID), string(c.Service))
	pipe.SAdd(ctx, keyAllCredentials, credentialMember(c.UserID, c.Service))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// DisconnectExpiredCredential runs under WATCH: a write to the credential
// between the read and the update aborts it and nothing changes.
func (s *Store) DisconnectExpiredCredential(ctx context.Context, userID int64, service domain.ServiceType, now time.Time) (bool, error) {
	key := CredentialKey(userID, service)
	changed := false

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", key, err)
		}

		var c domain.Credential
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", key, err)
		}
		if !c.Connected || !c.Expired(now) {
			return nil
		}

		c.Connected = false
		c.UpdatedAt = s.now()
		updated, err := json.Marshal(&c)
		if err != nil {
			return fmt.Errorf("failed to marshal credential: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		if err == nil {
			changed = true
		}
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return changed, err
}

func (s *Store) GetCredential(ctx context.Context, userID int64, service domain.ServiceType) (*domain.Credential, error) {
	var c domain.Credential
	if err := s.getJSON(ctx, CredentialKey(userID, service), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCredentials(ctx context.Context, userID int64) ([]*domain.Credential, error) {
	services, err := s.client.SMembers(ctx, UserCredentialsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential index: %w", err)
	}

	keys := make([]string, 0, len(services))
	for _, svc := range services {
		keys = append(keys, CredentialKey(userID, domain.ServiceType(svc)))
	}
	return s.loadCredentials(ctx, keys)
}

func (s *Store) ListAllCredentials(ctx context.Context) ([]*domain.Credential, error) {
	members, err := s.client.SMembers(ctx, keyAllCredentials).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential index: %w", err)
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		uid, svc, err := parseCredentialMember(m)
		if err != nil {
			continue
		}
		keys = append(keys, CredentialKey(uid, svc))
	}
	return s.loadCredentials(ctx, keys)
}

func (s *Store) loadCredentials(ctx context.Context, keys []string) ([]*domain.Credential, error) {
	out := make([]*domain.Credential, 0, len(keys))
	err := s.mgetJSON(ctx, keys, func(data []byte) error {
		var c domain.Credential
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		out = append(out, &c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	store.SortCredentials(out)
	return out, nil
}

func (s *Store) DeleteCredential(ctx context.Context, userID int64, service domain.ServiceType) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, CredentialKey(userID, service))
		pipe.SRem(ctx, UserCredentialsKey(userID), string(service))
		pipe.SRem(ctx, keyAllCredentials, credentialMember(userID, service))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
