package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/francium/storefront/internal/cart/domain"
	"github.com/francium/storefront/internal/money"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Service owns all cart mutation. Mutations for one owner are
// serialized through a per-owner lock so two concurrent AddItem calls
// can never both read the same quantity and lose an increment;
// different owners proceed in parallel.
type Service struct {
	repo    CartRepo
	catalog CatalogReader

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(repo CartRepo, catalog CatalogReader) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *Service) ownerLock(owner string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[owner]
	if !ok {
		l = &sync.Mutex{}
		s.locks[owner] = l
	}
	return l
}

// Get returns the owner's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, owner string) (domain.Cart, error) {
	l := s.ownerLock(owner)
	l.Lock()
	defer l.Unlock()

	return s.load(ctx, owner)
}

func (s *Service) load(ctx context.Context, owner string) (domain.Cart, error) {
	cart, err := s.repo.Get(ctx, owner)
	if errors.Is(err, ErrCartNotFound) {
		cart = domain.Empty(owner)
		cart.UpdatedAt = time.Now().UTC()
		if err := s.repo.Save(ctx, cart); err != nil {
			return domain.Cart{}, fmt.Errorf("create cart: %w", err)
		}
		return cart, nil
	}
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// AddItem snapshots the product's current catalog price and appends a
// line, or bumps the quantity of an existing line.
func (s *Service) AddItem(ctx context.Context, owner, productID string, quantity int32) (domain.Cart, error) {
	qty, err := money.NewQuantity(quantity)
	if err != nil {
		return domain.Cart{}, ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	l := s.ownerLock(owner)
	l.Lock()
	defer l.Unlock()

	cart, err := s.load(ctx, owner)
	if err != nil {
		return domain.Cart{}, err
	}

	if i := cart.IndexOf(productID); i >= 0 {
		cart.Items[i].Quantity = cart.Items[i].Quantity.Add(qty)
	} else {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  qty,
			UnitPrice: product.UnitPrice,
		})
	}

	cart.Recalculate()
	cart.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, cart); err != nil {
		return domain.Cart{}, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

// RemoveItem deletes the line for productID. Removing an absent line
// is a no-op, not an error.
func (s *Service) RemoveItem(ctx context.Context, owner, productID string) (domain.Cart, error) {
	l := s.ownerLock(owner)
	l.Lock()
	defer l.Unlock()

	cart, err := s.load(ctx, owner)
	if err != nil {
		return domain.Cart{}, err
	}

	i := cart.IndexOf(productID)
	if i < 0 {
		return cart, nil
	}

	cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	cart.Recalculate()
	cart.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, cart); err != nil {
		return domain.Cart{}, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

// Clear empties the cart. The checkout orchestrator calls this only
// after the order write is confirmed durable.
func (s *Service) Clear(ctx context.Context, owner string) error {
	l := s.ownerLock(owner)
	l.Lock()
	defer l.Unlock()

	cart := domain.Empty(owner)
	cart.UpdatedAt = time.Now().UTC()
	return s.repo.Save(ctx, cart)
}
