package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/francium/storefront/internal/money"
	"github.com/francium/storefront/internal/order/app"
	"github.com/francium/storefront/internal/order/domain"
)

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

func (r *OrderRepo) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO orders (owner_id, total_amount, currency, payment_status, fulfillment_status,
			gateway_intent_id, shipping_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		order.Owner, order.Total.Amount, order.Total.Currency,
		string(order.PaymentStatus), string(order.FulfillmentStatus),
		order.GatewayIntentID, order.ShippingAddress)

	if err := row.Scan(&order.ID, &order.CreatedAt); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i, it := range order.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, name, quantity, unit_amount, currency, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID, it.ProductID, it.Name, int32(it.Quantity), it.UnitPrice.Amount, it.UnitPrice.Currency, i)
		if err != nil {
			return domain.Order{}, fmt.Errorf("insert order item %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit: %w", err)
	}
	return order, nil
}

func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	var (
		order         domain.Order
		transactionID *string
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, total_amount, currency, payment_status, fulfillment_status,
			gateway_intent_id, gateway_transaction_id, shipping_address, created_at
		FROM orders WHERE id = $1`, id)

	err := row.Scan(&order.ID, &order.Owner, &order.Total.Amount, &order.Total.Currency,
		&order.PaymentStatus, &order.FulfillmentStatus,
		&order.GatewayIntentID, &transactionID, &order.ShippingAddress, &order.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	if transactionID != nil {
		order.GatewayTransactionID = *transactionID
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items
	return order, nil
}

// SettlePayment is a single conditional UPDATE: the row moves out of
// pending at most once no matter how many callbacks race on it.
func (r *OrderRepo) SettlePayment(ctx context.Context, id string, to domain.PaymentStatus, transactionID string) (bool, error) {
	if to == domain.PaymentPaid {
		ct, err := r.pool.Exec(ctx, `
			UPDATE orders
			SET payment_status = $2, gateway_transaction_id = $3, fulfillment_status = $4
			WHERE id = $1 AND payment_status = $5`,
			id, string(domain.PaymentPaid), transactionID,
			string(domain.FulfillmentProcessing), string(domain.PaymentPending))
		if err != nil {
			return false, fmt.Errorf("settle paid: %w", err)
		}
		return ct.RowsAffected() == 1, nil
	}

	ct, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET payment_status = $2
		WHERE id = $1 AND payment_status = $3`,
		id, string(to), string(domain.PaymentPending))
	if err != nil {
		return false, fmt.Errorf("settle %s: %w", to, err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *OrderRepo) ListByOwner(ctx context.Context, owner string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT id, owner_id, total_amount, currency, payment_status, fulfillment_status,
			gateway_intent_id, gateway_transaction_id, shipping_address, created_at
		FROM orders WHERE owner_id = $1 ORDER BY created_at DESC`, owner)
}

func (r *OrderRepo) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT id, owner_id, total_amount, currency, payment_status, fulfillment_status,
			gateway_intent_id, gateway_transaction_id, shipping_address, created_at
		FROM orders ORDER BY created_at DESC`)
}

func (r *OrderRepo) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var (
			order         domain.Order
			transactionID *string
		)
		if err := rows.Scan(&order.ID, &order.Owner, &order.Total.Amount, &order.Total.Currency,
			&order.PaymentStatus, &order.FulfillmentStatus,
			&order.GatewayIntentID, &transactionID, &order.ShippingAddress, &order.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if transactionID != nil {
			order.GatewayTransactionID = *transactionID
		}
		out = append(out, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		items, err := r.loadItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (r *OrderRepo) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, name, quantity, unit_amount, currency
		FROM order_items WHERE order_id = $1 ORDER BY position`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var (
			it  domain.OrderItem
			qty int32
		)
		if err := rows.Scan(&it.ProductID, &it.Name, &qty, &it.UnitPrice.Amount, &it.UnitPrice.Currency); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.Quantity = money.Quantity(qty)
		items = append(items, it)
	}
	return items, rows.Err()
}
