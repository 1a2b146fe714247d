package app

import (
	"context"

	"github.com/francium/storefront/internal/order/domain"
)

type OrderRepo interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	Get(ctx context.Context, id string) (domain.Order, error)
	// SettlePayment is the compare-and-swap at the heart of the
	// ledger: it moves the order from pending to the given status and
	// records the transaction id in one conditional write. It returns
	// false, without error, when the order already left pending.
	SettlePayment(ctx context.Context, id string, to domain.PaymentStatus, transactionID string) (bool, error)
	ListByOwner(ctx context.Context, owner string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
}
