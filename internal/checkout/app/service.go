// Package app coordinates checkout: it reads the cart, obtains a
// payment intent, writes the order, then clears the cart. The
// underlying store has no multi-document transaction, so the step
// order is what keeps partial failure benign.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	cartapp "github.com/francium/storefront/internal/cart/app"
	cartdomain "github.com/francium/storefront/internal/cart/domain"
	"github.com/francium/storefront/internal/money"
	orderapp "github.com/francium/storefront/internal/order/app"
	orderdomain "github.com/francium/storefront/internal/order/domain"
	"github.com/francium/storefront/internal/payment"
)

var (
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPaymentInitiationFailed wraps a retryable gateway fault; the
	// caller may retry the whole checkout, this service never does.
	ErrPaymentInitiationFailed = errors.New("payment initiation failed")
	// ErrPaymentRejected is permanent; retrying the same checkout
	// cannot succeed.
	ErrPaymentRejected = errors.New("payment rejected by gateway")
	// ErrProductUnavailable reports a carted product that the catalog
	// no longer sells.
	ErrProductUnavailable = errors.New("product no longer available")
	ErrInvalidAddress     = errors.New("shipping address is required")
)

type CartStore interface {
	Get(ctx context.Context, owner string) (cartdomain.Cart, error)
	Clear(ctx context.Context, owner string) error
}

type CatalogReader interface {
	GetProduct(ctx context.Context, productID string) (cartapp.Product, error)
}

type Ledger interface {
	Create(ctx context.Context, p orderapp.CreateParams) (orderdomain.Order, error)
	Verify(ctx context.Context, p orderapp.VerifyParams) (orderdomain.VerificationOutcome, error)
}

type Service struct {
	cart    CartStore
	catalog CatalogReader
	gateway payment.Gateway
	ledger  Ledger
	log     *slog.Logger

	maxConcurrent int

	// checkouts for one owner run one at a time so a double-click
	// yields one order and one EmptyCart, not two orders.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(cart CartStore, catalog CatalogReader, gateway payment.Gateway, ledger Ledger, log *slog.Logger) *Service {
	return &Service{
		cart:          cart,
		catalog:       catalog,
		gateway:       gateway,
		ledger:        ledger,
		log:           log,
		maxConcurrent: 10,
		locks:         make(map[string]*sync.Mutex),
	}
}

func (s *Service) ownerLock(owner string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[owner]
	if !ok {
		l = &sync.Mutex{}
		s.locks[owner] = l
	}
	return l
}

// Receipt is what the client needs to complete the payment.
type Receipt struct {
	OrderID         string
	GatewayIntentID string
	Amount          money.Money
}

// Checkout converts the owner's cart into a pending order.
//
// The order write must succeed before the cart is cleared: losing the
// cart on a failed checkout is a correctness bug, a stale cart after a
// placed order is only cosmetic.
func (s *Service) Checkout(ctx context.Context, owner, shippingAddress string) (Receipt, error) {
	if strings.TrimSpace(shippingAddress) == "" {
		return Receipt{}, ErrInvalidAddress
	}

	l := s.ownerLock(owner)
	l.Lock()
	defer l.Unlock()

	cart, err := s.cart.Get(ctx, owner)
	if err != nil {
		return Receipt{}, fmt.Errorf("read cart: %w", err)
	}
	if cart.IsEmpty() {
		return Receipt{}, ErrEmptyCart
	}

	if err := s.checkAvailability(ctx, cart.Items); err != nil {
		return Receipt{}, err
	}

	intent, err := s.gateway.CreateIntent(ctx, cart.Total)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrRejected):
			return Receipt{}, fmt.Errorf("%w: %v", ErrPaymentRejected, err)
		default:
			return Receipt{}, fmt.Errorf("%w: %v", ErrPaymentInitiationFailed, err)
		}
	}

	items := make([]orderdomain.OrderItem, len(cart.Items))
	for i, it := range cart.Items {
		items[i] = orderdomain.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}

	order, err := s.ledger.Create(ctx, orderapp.CreateParams{
		Owner:           owner,
		Items:           items,
		Total:           cart.Total,
		GatewayIntentID: intent.ID,
		ShippingAddress: shippingAddress,
	})
	if err != nil {
		// the intent stays unreferenced at the gateway; its expiry
		// cleans it up and the owner/intent check keeps it from ever
		// settling an order
		return Receipt{}, fmt.Errorf("write order: %w", err)
	}

	if err := s.cart.Clear(ctx, owner); err != nil {
		// tolerated: the order is durable, the leftover cart resolves
		// on the next mutation
		s.log.Warn("cart clear failed after order write",
			slog.String("owner", owner),
			slog.String("order_id", order.ID),
			slog.Any("err", err))
	}

	return Receipt{
		OrderID:         order.ID,
		GatewayIntentID: intent.ID,
		Amount:          cart.Total,
	}, nil
}

// checkAvailability re-reads every carted product concurrently, the
// cart's snapshot prices stay authoritative either way.
func (s *Service) checkAvailability(ctx context.Context, items []cartdomain.CartItem) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for _, it := range items {
		g.Go(func() error {
			product, err := s.catalog.GetProduct(ctx, it.ProductID)
			if err != nil || !product.Available {
				return fmt.Errorf("%w: %s", ErrProductUnavailable, it.ProductID)
			}
			return nil
		})
	}
	return g.Wait()
}

type SettleRequest struct {
	OrderID         string
	GatewayIntentID string
	TransactionID   string
	Signature       string
	Captured        bool
}

// Settle reconciles a payment callback against the ledger. The
// signature is checked before any state is read, so a forged callback
// learns nothing about which orders exist.
func (s *Service) Settle(ctx context.Context, owner string, req SettleRequest) (orderdomain.VerificationOutcome, error) {
	if !s.gateway.VerifySignature(req.GatewayIntentID, req.TransactionID, req.Signature) {
		s.log.Warn("payment callback signature rejected",
			slog.String("security_event", "signature_mismatch"),
			slog.String("owner", owner))
		return orderdomain.OutcomeRejectedSignature, nil
	}

	return s.ledger.Verify(ctx, orderapp.VerifyParams{
		OrderID:         req.OrderID,
		Owner:           owner,
		GatewayIntentID: req.GatewayIntentID,
		TransactionID:   req.TransactionID,
		Captured:        req.Captured,
	})
}
