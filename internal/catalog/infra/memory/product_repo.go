// Package memory holds the in-memory product store used by tests and
// local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/francium/storefront/internal/catalog/app"
	"github.com/francium/storefront/internal/catalog/domain"
)

type ProductRepo struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

func NewProductRepo() *ProductRepo {
	return &ProductRepo{products: make(map[string]domain.Product)}
}

func (r *ProductRepo) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.products[p.ID] = p
	return p, nil
}

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return domain.Product{}, app.ErrNotFound
	}
	return p, nil
}

func (r *ProductRepo) List(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetAvailability flips a product's availability; tests use it to model
// a product going out of stock after items were carted.
func (r *ProductRepo) SetAvailability(id string, available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.products[id]; ok {
		p.Available = available
		p.UpdatedAt = time.Now().UTC()
		r.products[id] = p
	}
}

// SetPrice overwrites a product's unit price; tests use it to prove
// carted and ordered snapshots do not move with the catalog.
func (r *ProductRepo) SetPrice(id string, amount int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.products[id]; ok {
		p.Price.Amount = amount
		p.UpdatedAt = time.Now().UTC()
		r.products[id] = p
	}
}
