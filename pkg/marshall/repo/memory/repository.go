package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-marshall/pkg/marshall"
)

// Repository implements marshall.Repository using in-memory storage
type Repository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*marshall.Item
}

// New creates a new in-memory repository
func New() marshall.Repository {
	return &Repository{
		items: make(map[uuid.UUID]*marshall.Item),
	}
}

func (r *Repository) CreateItem(ctx context.Context, item *marshall.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Store a copy to avoid external modifications
	r.items[item.ID] = item.Clone()
	return nil
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (*marshall.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[id]
	if !exists || item.DeletedAt != nil {
		return nil, marshall.ErrItemNotFound
	}
	return item.Clone(), nil
}

func (r *Repository) UpdateItem(ctx context.Context, item *marshall.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.items[item.ID]
	if !exists || existing.DeletedAt != nil {
		return marshall.ErrItemNotFound
	}
	r.items[item.ID] = item.Clone()
	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, exists := r.items[id]
	if !exists || item.DeletedAt != nil {
		return marshall.ErrItemNotFound
	}

	now := time.Now().UTC()
	item.DeletedAt = &now
	item.UpdatedAt = now
	return nil
}

func (r *Repository) ListItems(ctx context.Context, typeName string) ([]*marshall.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*marshall.Item
	for _, item := range r.items {
		if item.DeletedAt != nil {
			continue
		}
		if typeName != "" && item.TypeName != typeName {
			continue
		}
		result = append(result, item.Clone())
	}

	// Sort by created_at descending
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}
