package app

import (
	"context"
	"errors"
	"strings"

	"github.com/francium/storefront/internal/catalog/domain"
	"github.com/francium/storefront/internal/money"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("product not found")
)

type Service struct {
	repo ProductRepo
}

func NewService(repo ProductRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateProduct(ctx context.Context, name, desc, category string, price money.Money) (domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" || !price.IsPositive() || strings.TrimSpace(price.Currency) == "" {
		return domain.Product{}, ErrInvalidInput
	}

	p := domain.Product{
		Name:        name,
		Description: desc,
		Category:    strings.TrimSpace(category),
		Price:       price,
		Available:   true,
	}

	return s.repo.Create(ctx, p)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, ErrInvalidInput
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, query, limit)
}
