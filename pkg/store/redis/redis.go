package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rmax-ai/restock/pkg/engine"
)

const (
	itemsSet   = "restock:items"
	keyPrefix  = "restock:item:"
	maxRetries = 100
)

// ErrConflict is returned when an update keeps losing optimistic lock races.
var ErrConflict = errors.New("too many concurrent updates")

// ItemStore implements engine.ItemStore on Redis. Each item is a JSON value
// and a set indexes every item key.
type ItemStore struct {
	client *redis.Client
}

var _ engine.ItemStore = (*ItemStore)(nil)

func NewItemStore(client *redis.Client) *ItemStore {
	return &ItemStore{client: client}
}

func (s *ItemStore) makeKey(id string) string {
	return keyPrefix + id
}

func decodeItem(data string) (engine.Item, error) {
	var item engine.Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return engine.Item{}, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return item, nil
}

func (s *ItemStore) Get(ctx context.Context, id string) (engine.Item, error) {
	return s.get(ctx, s.client, id)
}

func (s *ItemStore) get(ctx context.Context, c redis.Cmdable, id string) (engine.Item, error) {
	key := s.makeKey(id)
	data, err := c.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return engine.Item{}, engine.ErrItemNotFound
	}
	if err != nil {
		return engine.Item{}, fmt.Errorf("failed to GET key %s: %w", key, err)
	}
	return decodeItem(data)
}

func (s *ItemStore) List(ctx context.Context) ([]engine.Item, error) {
	keys, err := s.client.SMembers(ctx, itemsSet).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to SMEMBERS %s: %w", itemsSet, err)
	}
	items := make([]engine.Item, 0, len(keys))
	if len(keys) == 0 {
		return items, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to MGET items: %w", err)
	}
	for i, val := range values {
		if val == nil {
			// Deleted between SMEMBERS and MGET.
			continue
		}
		str, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("MGET returned non-string for key %s", keys[i])
		}
		item, err := decodeItem(str)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	engine.SortItems(items)
	return items, nil
}

func (s *ItemStore) Create(ctx context.Context, item engine.Item) error {
	key := s.makeKey(item.ID)
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	ok, err := s.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to SETNX key %s: %w", key, err)
	}
	if !ok {
		return engine.ErrItemExists
	}
	if err := s.client.SAdd(ctx, itemsSet, key).Err(); err != nil {
		// Every stored item key must be indexed.
		if delErr := s.client.Del(ctx, key).Err(); delErr != nil {
			return errors.Join(fmt.Errorf("failed to SADD key %s to set: %w", key, err), delErr)
		}
		return fmt.Errorf("failed to SADD key %s to set: %w", key, err)
	}
	return nil
}

// Update runs fn under WATCH and writes the result in a MULTI block,
// retrying when another writer touched the key in between.
func (s *ItemStore) Update(ctx context.Context, id string, fn func(*engine.Item) error) (engine.Item, error) {
	key := s.makeKey(id)

	var updated engine.Item
	txf := func(tx *redis.Tx) error {
		item, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&item); err != nil {
			return err
		}
		item.ID = id

		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal item: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = item
		return nil
	}

	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return engine.Item{}, err
	}
	return engine.Item{}, fmt.Errorf("failed to update item %s: %w", id, ErrConflict)
}

func (s *ItemStore) Delete(ctx context.Context, id string) error {
	key := s.makeKey(id)
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to DEL key %s: %w", key, err)
	}
	if err := s.client.SRem(ctx, itemsSet, key).Err(); err != nil {
		return fmt.Errorf("failed to SREM key %s: %w", key, err)
	}
	if n == 0 {
		return engine.ErrItemNotFound
	}
	return nil
}
