// Package adapter bridges the catalog service to the narrow reader
// interfaces the cart and checkout services consume.
package adapter

import (
	"context"

	cartapp "github.com/francium/storefront/internal/cart/app"
	catalogapp "github.com/francium/storefront/internal/catalog/app"
)

type CatalogServiceReader struct {
	svc *catalogapp.Service
}

func NewCatalogServiceReader(svc *catalogapp.Service) *CatalogServiceReader {
	return &CatalogServiceReader{svc: svc}
}

func (r *CatalogServiceReader) GetProduct(ctx context.Context, productID string) (cartapp.Product, error) {
	p, err := r.svc.GetProduct(ctx, productID)
	if err != nil {
		return cartapp.Product{}, err
	}

	return cartapp.Product{
		ID:        p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Available: p.Available,
	}, nil
}
