package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/francium/storefront/internal/cart/app"
	"github.com/francium/storefront/internal/cart/domain"
	"github.com/francium/storefront/internal/money"
)

type CartRepo struct {
	pool *pgxpool.Pool
}

func NewCartRepo(pool *pgxpool.Pool) *CartRepo {
	return &CartRepo{pool: pool}
}

func (r *CartRepo) Get(ctx context.Context, owner string) (domain.Cart, error) {
	cart := domain.Cart{Owner: owner}

	row := r.pool.QueryRow(ctx, `SELECT updated_at FROM carts WHERE owner_id = $1`, owner)
	if err := row.Scan(&cart.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Cart{}, app.ErrCartNotFound
		}
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT product_id, name, quantity, unit_amount, currency
		FROM cart_items WHERE owner_id = $1 ORDER BY position`, owner)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it  domain.CartItem
			qty int32
		)
		if err := rows.Scan(&it.ProductID, &it.Name, &qty, &it.UnitPrice.Amount, &it.UnitPrice.Currency); err != nil {
			return domain.Cart{}, fmt.Errorf("scan cart item: %w", err)
		}
		it.Quantity = money.Quantity(qty)
		cart.Items = append(cart.Items, it)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, err
	}

	cart.Recalculate()
	return cart, nil
}

// Save rewrites the owner's cart in one transaction. The cart service
// holds the per-owner lock, so the delete-then-insert cannot interleave
// with another writer for the same owner.
func (r *CartRepo) Save(ctx context.Context, cart domain.Cart) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO carts (owner_id, updated_at) VALUES ($1, $2)
		ON CONFLICT (owner_id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		cart.Owner, cart.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE owner_id = $1`, cart.Owner); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}

	for i, it := range cart.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO cart_items (owner_id, product_id, name, quantity, unit_amount, currency, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			cart.Owner, it.ProductID, it.Name, int32(it.Quantity), it.UnitPrice.Amount, it.UnitPrice.Currency, i)
		if err != nil {
			return fmt.Errorf("insert cart item %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}
