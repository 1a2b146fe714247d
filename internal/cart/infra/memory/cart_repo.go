package memory

import (
	"context"
	"sync"

	"github.com/francium/storefront/internal/cart/app"
	"github.com/francium/storefront/internal/cart/domain"
)

type CartRepo struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

func NewCartRepo() *CartRepo {
	return &CartRepo{carts: make(map[string]domain.Cart)}
}

func (r *CartRepo) Get(ctx context.Context, owner string) (domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.carts[owner]
	if !ok {
		return domain.Cart{}, app.ErrCartNotFound
	}
	return clone(cart), nil
}

func (r *CartRepo) Save(ctx context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[cart.Owner] = clone(cart)
	return nil
}

// clone copies the item slice so callers never share backing arrays
// with the store.
func clone(c domain.Cart) domain.Cart {
	items := make([]domain.CartItem, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}
