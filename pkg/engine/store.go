package engine

import (
	"context"
	"sort"
	"sync"
)

// ItemStore persists items.
type ItemStore interface {
	Get(ctx context.Context, id string) (Item, error)
	List(ctx context.Context) ([]Item, error)
	Create(ctx context.Context, item Item) error
	// Update loads the item, applies fn and saves the result atomically. If fn
	// returns an error nothing is written and the error is returned as is.
	Update(ctx context.Context, id string, fn func(*Item) error) (Item, error)
	Delete(ctx context.Context, id string) error
}

// MemoryItemStore implements ItemStore using an in-memory map
type MemoryItemStore struct {
	mu    sync.RWMutex
	items map[string]Item
}

func NewMemoryItemStore() *MemoryItemStore {
	return &MemoryItemStore{
		items: make(map[string]Item),
	}
}

func (s *MemoryItemStore) Get(_ context.Context, id string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return cloneItem(item), nil
}

func (s *MemoryItemStore) List(_ context.Context) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		list = append(list, cloneItem(item))
	}
	SortItems(list)
	return list, nil
}

func (s *MemoryItemStore) Create(_ context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return ErrItemExists
	}
	s.items[item.ID] = cloneItem(item)
	return nil
}

func (s *MemoryItemStore) Update(_ context.Context, id string, fn func(*Item) error) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	item = cloneItem(item)
	if err := fn(&item); err != nil {
		return Item{}, err
	}
	item.ID = id
	s.items[id] = item
	return cloneItem(item), nil
}

func (s *MemoryItemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return ErrItemNotFound
	}
	delete(s.items, id)
	return nil
}

// SortItems orders items by creation time, then ID. Stores use it so every
// backend lists in the same order.
func SortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

// cloneItem copies the pointer fields so callers cannot alias stored state.
func cloneItem(item Item) Item {
	if item.UsageRate != nil {
		rate := *item.UsageRate
		item.UsageRate = &rate
	}
	if item.LastAlertAt != nil {
		at := *item.LastAlertAt
		item.LastAlertAt = &at
	}
	return item
}
