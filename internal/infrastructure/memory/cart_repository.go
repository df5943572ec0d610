package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/shopfront/internal/domain/cart"
)

type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart // keyed by owner id
}

func NewCartRepository() *CartRepository {
	return &CartRepository{
		carts: make(map[string]*domain.Cart),
	}
}

func (r *CartRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.Cart, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *CartRepository) Save(ctx context.Context, c *domain.Cart) error {
	_ = ctx
	if c == nil || c.OwnerID == "" {
		return fmt.Errorf("cart repository: owner id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[c.OwnerID] = c.Clone()
	return nil
}
