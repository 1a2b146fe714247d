package app

import (
	"context"

	"github.com/francium/storefront/internal/auth/domain"
)

type UserRepo interface {
	Create(ctx context.Context, u domain.User) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}
