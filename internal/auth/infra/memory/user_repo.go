package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/francium/storefront/internal/auth/app"
	"github.com/francium/storefront/internal/auth/domain"
)

type UserRepo struct {
	mu      sync.RWMutex
	byEmail map[string]domain.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{byEmail: make(map[string]domain.User)}
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[u.Email]; ok {
		return domain.User{}, app.ErrEmailTaken
	}

	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	r.byEmail[u.Email] = u
	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byEmail[email]
	if !ok {
		return domain.User{}, app.ErrUserNotFound
	}
	return u, nil
}
