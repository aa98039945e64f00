package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/dash/internal/domain"
	"github.com/MrSnakeDoc/dash/internal/store"
)

func (s *Store) CreateWidget(ctx context.Context, w *domain.Widget) error {
	if w.Position < 0 {
		existing, err := s.ListWidgets(ctx, w.UserID)
		if err != nil {
			return err
		}
		w.Position = store.NextPosition(existing)
	}

	id, err := s.client.Incr(ctx, keyWidgetsSeq).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate widget id: %w", err)
	}
	w.ID = id
	w.CreatedAt = s.now()
	store.PrepareWidget(w, w.CreatedAt)

	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to marshal widget: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, WidgetKey(id), data, 0)
	pipe.SAdd(ctx, UserWidgetsKey(w.UserID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save widget: %w", err)
	}
	return nil
}

func (s *Store) GetWidget(ctx context.Context, userID, id int64) (*domain.Widget, error) {
	var w domain.Widget
	if err := s.getJSON(ctx, WidgetKey(id), &w); err != nil {
		return nil, err
	}
	if w.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return &w, nil
}

func (s *Store) ListWidgets(ctx context.Context, userID int64) ([]*domain.Widget, error) {
	members, err := s.client.SMembers(ctx, UserWidgetsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get widget index: %w", err)
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		keys = append(keys, WidgetKey(id))
	}

	out := make([]*domain.Widget, 0, len(keys))
	err = s.mgetJSON(ctx, keys, func(data []byte) error {
		var w domain.Widget
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		out = append(out, &w)
		return nil
	})
	if err != nil {
		return nil, err
	}
	store.SortWidgets(out)
	return out, nil
}

func (s *Store) UpdateWidget(ctx context.Context, w *domain.Widget) error {
	existing, err := s.GetWidget(ctx, w.UserID, w.ID)
	if err != nil {
		return err
	}
	w.CreatedAt = existing.CreatedAt
	store.PrepareWidget(w, s.now())
	return s.saveWidgets(ctx, w)
}

func (s *Store) DeleteWidget(ctx context.Context, userID, id int64) error {
	if _, err := s.GetWidget(ctx, userID, id); err != nil {
		return err
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, WidgetKey(id))
		pipe.SRem(ctx, UserWidgetsKey(userID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete widget: %w", err)
	}
	return nil
}

func (s *Store) ReorderWidgets(ctx context.Context, userID int64, ids []int64) error {
	ws, err := s.ListWidgets(ctx, userID)
	if err != nil {
		return err
	}
	changed, err := store.ApplyOrder(ws, ids)
	if err != nil {
		return err
	}
	now := s.now()
	for _, w := range changed {
		w.UpdatedAt = now
	}
	return s.saveWidgets(ctx, changed...)
}

// saveWidgets writes widgets in one transaction.
func (s *Store) saveWidgets(ctx context.Context, ws ...*domain.Widget) error {
	if len(ws) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for _, w := range ws {
		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("failed to marshal widget %d: %w", w.ID, err)
		}
		pipe.Set(ctx, WidgetKey(w.ID), data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save widgets: %w", err)
	}
	return nil
}
