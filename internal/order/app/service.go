package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/francium/storefront/internal/money"
	"github.com/francium/storefront/internal/order/domain"
)

var (
	ErrInvalidOrder = errors.New("invalid order")
	ErrNotFound     = errors.New("order not found")
)

// Service is the order ledger: the only writer of order state.
type Service struct {
	repo OrderRepo
}

func NewService(repo OrderRepo) *Service {
	return &Service{repo: repo}
}

type CreateParams struct {
	Owner           string
	Items           []domain.OrderItem
	Total           money.Money
	GatewayIntentID string
	ShippingAddress string
}

// Create writes a new order in (pending, placed). Items and total are
// the caller's frozen snapshot; the ledger re-checks that the total is
// the sum of the lines before trusting it.
func (s *Service) Create(ctx context.Context, p CreateParams) (domain.Order, error) {
	if len(p.Items) == 0 {
		return domain.Order{}, fmt.Errorf("%w: no items", ErrInvalidOrder)
	}
	if !p.Total.IsPositive() {
		return domain.Order{}, fmt.Errorf("%w: total must be positive", ErrInvalidOrder)
	}
	if strings.TrimSpace(p.ShippingAddress) == "" {
		return domain.Order{}, fmt.Errorf("%w: shipping address is required", ErrInvalidOrder)
	}
	if strings.TrimSpace(p.GatewayIntentID) == "" {
		return domain.Order{}, fmt.Errorf("%w: payment intent is required", ErrInvalidOrder)
	}

	var sum int64
	for i, it := range p.Items {
		if it.Quantity < 1 {
			return domain.Order{}, fmt.Errorf("%w: item %d quantity", ErrInvalidOrder, i)
		}
		sum += it.LineTotal().Amount
	}
	if sum != p.Total.Amount {
		return domain.Order{}, fmt.Errorf("%w: total %d does not match line sum %d", ErrInvalidOrder, p.Total.Amount, sum)
	}

	items := make([]domain.OrderItem, len(p.Items))
	copy(items, p.Items)

	order := domain.Order{
		Owner:             p.Owner,
		Items:             items,
		Total:             p.Total,
		PaymentStatus:     domain.PaymentPending,
		FulfillmentStatus: domain.FulfillmentPlaced,
		GatewayIntentID:   p.GatewayIntentID,
		ShippingAddress:   strings.TrimSpace(p.ShippingAddress),
	}

	return s.repo.Insert(ctx, order)
}

type VerifyParams struct {
	OrderID         string
	Owner           string
	GatewayIntentID string
	TransactionID   string
	// Captured is the gateway's reported result for the intent. A
	// truthful capture moves the order to paid; a reported failure
	// moves it to failed.
	Captured bool
}

// Verify applies the exactly-once payment transition. The owner and
// intent on the order must match the callback before the transition is
// trusted: a signature valid for some other order's intent must never
// settle this one. Duplicate deliveries land on the compare-and-swap
// and report AlreadyProcessed.
func (s *Service) Verify(ctx context.Context, p VerifyParams) (domain.VerificationOutcome, error) {
	order, err := s.repo.Get(ctx, p.OrderID)
	if errors.Is(err, ErrNotFound) {
		return domain.OutcomeNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("load order: %w", err)
	}

	if order.Owner != p.Owner || order.GatewayIntentID != p.GatewayIntentID {
		// indistinguishable from a missing order on purpose
		return domain.OutcomeNotFound, nil
	}

	target := domain.PaymentFailed
	transactionID := ""
	if p.Captured {
		target = domain.PaymentPaid
		transactionID = p.TransactionID
	}

	swapped, err := s.repo.SettlePayment(ctx, order.ID, target, transactionID)
	if err != nil {
		return "", fmt.Errorf("settle payment: %w", err)
	}
	if !swapped {
		return domain.OutcomeAlreadyProcessed, nil
	}

	if p.Captured {
		return domain.OutcomeAppliedPaid, nil
	}
	return domain.OutcomeAppliedFailed, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, owner string) ([]domain.Order, error) {
	return s.repo.ListByOwner(ctx, owner)
}

// ListAll is the administrative listing; callers enforce the admin
// role before reaching the ledger.
func (s *Service) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.repo.ListAll(ctx)
}
