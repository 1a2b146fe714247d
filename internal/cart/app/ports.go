package app

import (
	"context"

	"github.com/francium/storefront/internal/cart/domain"
	"github.com/francium/storefront/internal/money"
)

type CartRepo interface {
	// Get returns the owner's cart or ErrCartNotFound.
	Get(ctx context.Context, owner string) (domain.Cart, error)
	// Save overwrites the owner's cart as a whole. Callers hold the
	// per-owner lock, so read-modify-write through Save is safe.
	Save(ctx context.Context, cart domain.Cart) error
}

// CatalogReader is the slice of the catalog collaborator the cart
// needs: the price snapshot at add-to-cart time.
type CatalogReader interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

type Product struct {
	ID        string
	Name      string
	UnitPrice money.Money
	Available bool
}
