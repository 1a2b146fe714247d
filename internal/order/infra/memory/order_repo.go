package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/francium/storefront/internal/order/app"
	"github.com/francium/storefront/internal/order/domain"
)

type OrderRepo struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func NewOrderRepo() *OrderRepo {
	return &OrderRepo{orders: make(map[string]domain.Order)}
}

func (r *OrderRepo) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order.ID = uuid.NewString()
	order.CreatedAt = time.Now().UTC()
	r.orders[order.ID] = clone(order)
	return order, nil
}

func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, app.ErrNotFound
	}
	return clone(order), nil
}

// SettlePayment performs the pending->to swap under the store lock so
// concurrent duplicate callbacks see exactly one success.
func (r *OrderRepo) SettlePayment(ctx context.Context, id string, to domain.PaymentStatus, transactionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return false, app.ErrNotFound
	}
	if order.PaymentStatus != domain.PaymentPending {
		return false, nil
	}

	order.PaymentStatus = to
	if to == domain.PaymentPaid {
		order.GatewayTransactionID = transactionID
		order.FulfillmentStatus = domain.FulfillmentProcessing
	}
	r.orders[id] = order
	return true, nil
}

func (r *OrderRepo) ListByOwner(ctx context.Context, owner string) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Order
	for _, o := range r.orders {
		if o.Owner == owner {
			out = append(out, clone(o))
		}
	}
	sortByCreatedDesc(out)
	return out, nil
}

func (r *OrderRepo) ListAll(ctx context.Context) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, clone(o))
	}
	sortByCreatedDesc(out)
	return out, nil
}

func sortByCreatedDesc(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
}

func clone(o domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}
