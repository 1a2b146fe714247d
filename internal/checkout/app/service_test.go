package app_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	cartapp "github.com/francium/storefront/internal/cart/app"
	cartmem "github.com/francium/storefront/internal/cart/infra/memory"
	checkoutapp "github.com/francium/storefront/internal/checkout/app"
	"github.com/francium/storefront/internal/money"
	orderapp "github.com/francium/storefront/internal/order/app"
	orderdomain "github.com/francium/storefront/internal/order/domain"
	ordermem "github.com/francium/storefront/internal/order/infra/memory"
	"github.com/francium/storefront/internal/payment"
)

const gatewaySecret = "test-secret"

// fakeCatalog serves both the cart's price snapshot reads and the
// checkout availability check, and lets tests move prices afterwards.
type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]cartapp.Product
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id string) (cartapp.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return cartapp.Product{}, errors.New("not found")
	}
	return p, nil
}

func (f *fakeCatalog) setPrice(id string, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[id]
	p.UnitPrice.Amount = amount
	f.products[id] = p
}

func (f *fakeCatalog) setAvailable(id string, available bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[id]
	p.Available = available
	f.products[id] = p
}

// fakeGateway issues deterministic intents and counts calls so tests
// can assert checkout made no gateway call on an empty cart.
type fakeGateway struct {
	calls atomic.Int64
	fail  error
}

func (g *fakeGateway) CreateIntent(ctx context.Context, amount money.Money) (payment.Intent, error) {
	n := g.calls.Add(1)
	if g.fail != nil {
		return payment.Intent{}, g.fail
	}
	return payment.Intent{ID: fmt.Sprintf("intent_%d", n), Amount: amount}, nil
}

func (g *fakeGateway) VerifySignature(intentID, transactionID, signature string) bool {
	expected := payment.Sign(gatewaySecret, intentID, transactionID)
	return signature == expected
}

type fixture struct {
	catalog *fakeCatalog
	gateway *fakeGateway
	cart    *cartapp.Service
	orders  *orderapp.Service
	svc     *checkoutapp.Service
}

func newFixture() *fixture {
	catalog := &fakeCatalog{products: map[string]cartapp.Product{
		"prod-a": {ID: "prod-a", Name: "Keyboard", UnitPrice: money.Money{Amount: 10000, Currency: "INR"}, Available: true},
		"prod-b": {ID: "prod-b", Name: "Mouse", UnitPrice: money.Money{Amount: 5000, Currency: "INR"}, Available: true},
	}}
	gateway := &fakeGateway{}
	cart := cartapp.NewService(cartmem.NewCartRepo(), catalog)
	orders := orderapp.NewService(ordermem.NewOrderRepo())
	log := slog.New(slog.DiscardHandler)
	return &fixture{
		catalog: catalog,
		gateway: gateway,
		cart:    cart,
		orders:  orders,
		svc:     checkoutapp.NewService(cart, catalog, gateway, orders, log),
	}
}

// brokenClearCart delegates to the real cart service but fails every
// Clear, standing in for a store outage between the order write and
// the cart cleanup.
type brokenClearCart struct {
	*cartapp.Service
}

func (b *brokenClearCart) Clear(ctx context.Context, owner string) error {
	return errors.New("store unavailable")
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.NewString()

	_, err := f.svc.Checkout(ctx, owner, "42 MG Road, Bengaluru")
	if !errors.Is(err, checkoutapp.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if got := f.gateway.calls.Load(); got != 0 {
		t.Fatalf("empty-cart checkout must not call the gateway, got %d calls", got)
	}
	orders, _ := f.orders.ListByOwner(ctx, owner)
	if len(orders) != 0 {
		t.Fatalf("empty-cart checkout created %d orders", len(orders))
	}
}

func TestCheckoutBlankAddress(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.NewString()

	if _, err := f.cart.AddItem(ctx, owner, "prod-a", 1); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if _, err := f.svc.Checkout(ctx, owner, "  "); !errors.Is(err, checkoutapp.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

func TestCheckoutThenSettle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.NewString()

	// 2 x prod-a @ 100.00 + 1 x prod-b @ 50.00 = 250.00
	if _, err := f.cart.AddItem(ctx, owner, "prod-a", 2); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	if _, err := f.cart.AddItem(ctx, owner, "prod-b", 1); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	receipt, err := f.svc.Checkout(ctx, owner, "42 MG Road, Bengaluru")
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	if receipt.Amount.Amount != 25000 {
		t.Fatalf("receipt amount: got %d", receipt.Amount.Amount)
	}

	// the cart is gone once the order is durable
	cart, err := f.cart.Get(ctx, owner)
	if err != nil {
		t.Fatalf("Get cart failed: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatal("cart not cleared after checkout")
	}

	order, err := f.orders.Get(ctx, receipt.OrderID)
	if err != nil {
		t.Fatalf("Get order failed: %v", err)
	}
	if order.Total.Amount != 25000 || order.PaymentStatus != orderdomain.PaymentPending {
		t.Fatalf("order: %+v", order)
	}

	// a later catalog price change never reaches the frozen order
	f.catalog.setPrice("prod-a", 99900)
	order, _ = f.orders.Get(ctx, receipt.OrderID)
	if got := order.Items[0].UnitPrice.Amount; got != 10000 {
		t.Fatalf("order item price moved with catalog: %d", got)
	}

	sig := payment.Sign(gatewaySecret, receipt.GatewayIntentID, "txn_1")
	outcome, err := f.svc.Settle(ctx, owner, checkoutapp.SettleRequest{
		OrderID:         receipt.OrderID,
		GatewayIntentID: receipt.GatewayIntentID,
		TransactionID:   "txn_1",
		Signature:       sig,
		Captured:        true,
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if outcome != orderdomain.OutcomeAppliedPaid {
		t.Fatalf("settle outcome: %s", outcome)
	}

	order, _ = f.orders.Get(ctx, receipt.OrderID)
	if order.PaymentStatus != orderdomain.PaymentPaid || order.GatewayTransactionID != "txn_1" {
		t.Fatalf("after settle: %+v", order)
	}

	// duplicate callback delivery
	outcome, err = f.svc.Settle(ctx, owner, checkoutapp.SettleRequest{
		OrderID:         receipt.OrderID,
		GatewayIntentID: receipt.GatewayIntentID,
		TransactionID:   "txn_1",
		Signature:       sig,
		Captured:        true,
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if outcome != orderdomain.OutcomeAlreadyProcessed {
		t.Fatalf("duplicate settle outcome: %s", outcome)
	}
	order, _ = f.orders.Get(ctx, receipt.OrderID)
	if order.GatewayTransactionID != "txn_1" {
		t.Fatalf("transaction id changed on duplicate settle: %s", order.GatewayTransactionID)
	}
}

func TestCheckoutSurvivesCartClearFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.NewString()
	log := slog.New(slog.DiscardHandler)
	svc := checkoutapp.NewService(&brokenClearCart{f.cart}, f.catalog, f.gateway, f.orders, log)

	if _, err := f.cart.AddItem(ctx, owner, "prod-a", 2); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	// the order is durable before Clear runs, so a failed Clear must
	// not fail the checkout
	receipt, err := svc.Checkout(ctx, owner, "42 MG Road, Bengaluru")
	if err != nil {
		t.Fatalf("Checkout failed on cart-clear error: %v", err)
	}
	if receipt.OrderID == "" || receipt.GatewayIntentID == "" {
		t.Fatalf("incomplete receipt: %+v", receipt)
	}

	orders, err := f.orders.ListByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ListByOwner failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected exactly one order, got %d", len(orders))
	}
	if orders[0].PaymentStatus != orderdomain.PaymentPending {
		t.Fatalf("order status: %s", orders[0].PaymentStatus)
	}

	// the stale cart rides along until the next mutation
	cart, _ := f.cart.Get(ctx, owner)
	if cart.IsEmpty() {
		t.Fatal("cart emptied despite Clear failing")
	}
}

func TestSettleTamperedSignature(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.NewString()

	if _, err := f.cart.AddItem(ctx, owner, "prod-a", 1); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	receipt, err := f.svc.Checkout(ctx, owner, "42 MG Road, Bengaluru")
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}

	tampered := payment.Sign("wrong-secret", receipt.GatewayIntentID, "txn_1")

	t.Run("existing order", func(t *testing.T) {
		outcome, err := f.svc.Settle(ctx, owner, checkoutapp.SettleRequest{
			OrderID:         receipt.OrderID,
			GatewayIntentID: receipt.GatewayIntentID,
			TransactionID:   "txn_1",
			Signature:       tampered,
			Captured:        true,
		})
		if err != nil || outcome != orderdomain.OutcomeRejectedSignature {
			t.Fatalf("got (%s, %v)", outcome, err)
		}
	})

	t.Run("missing order, identical outcome", func(t *testing.T) {
		outcome, err := f.svc.Settle(ctx, owner, checkoutapp.SettleRequest{
			OrderID:         uuid.NewString(),
			GatewayIntentID: "intent_ghost",
			TransactionID:   "txn_1",
			Signature:       tampered,
			Captured:        true,
		})
		if err != nil || outcome != orderdomain.OutcomeRejectedSignature {
			t.Fatalf("got (%s, %v)", outcome, err)
		}
	})

	order, _ := f.orders.Get(ctx, receipt.OrderID)
	if order.PaymentStatus != orderdomain.PaymentPending {
		t.Fatalf("order moved by rejected settle: %s", order.PaymentStatus)
	}
}

func TestCheckoutGatewayFailures(t *testing.T) {
	t.Run("unavailable -> retryable", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		owner := uuid.NewString()
		f.gateway.fail = payment.ErrUnavailable

		if _, err := f.cart.AddItem(ctx, owner, "prod-a", 1); err != nil {
			t.Fatalf("AddItem failed: %v", err)
		}
		_, err := f.svc.Checkout(ctx, owner, "42 MG Road, Bengaluru")
		if !errors.Is(err, checkoutapp.ErrPaymentInitiationFailed) {
			t.Fatalf("expected ErrPaymentInitiationFailed, got %v", err)
		}

		// the cart survives a failed checkout
		cart, _ := f.cart.Get(ctx, owner)
		if cart.IsEmpty() {
			t.Fatal("cart lost on failed checkout")
		}
		orders, _ := f.orders.ListByOwner(ctx, owner)
		if len(orders) != 0 {
			t.Fatalf("failed checkout created %d orders", len(orders))
		}
	})

	t.Run("rejected -> permanent", func(t *testing.T) {
		f := newFixture()
		ctx := context.Background()
		owner := uuid.NewString()
		f.gateway.fail = payment.ErrRejected

		if _, err := f.cart.AddItem(ctx, owner, "prod-a", 1); err != nil {
			t.Fatalf("AddItem failed: %v", err)
		}
		_, err := f.svc.Checkout(ctx, owner, "42 MG Road, Bengaluru")
		if !errors.Is(err, checkoutapp.ErrPaymentRejected) {
			t.Fatalf("expected ErrPaymentRejected, got %v", err)
		}
	})
}

func TestCheckoutUnavailableProduct(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.NewString()

	if _, err := f.cart.AddItem(ctx, owner, "prod-a", 1); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	f.catalog.setAvailable("prod-a", false)

	_, err := f.svc.Checkout(ctx, owner, "42 MG Road, Bengaluru")
	if !errors.Is(err, checkoutapp.ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
	if got := f.gateway.calls.Load(); got != 0 {
		t.Fatalf("unavailable product must fail before the gateway, got %d calls", got)
	}
}

func TestConcurrentCheckoutsSameCart(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := uuid.NewString()

	if _, err := f.cart.AddItem(ctx, owner, "prod-a", 1); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}

	var emptyCart, placed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := f.svc.Checkout(gctx, owner, "42 MG Road, Bengaluru")
			switch {
			case err == nil:
				placed.Add(1)
			case errors.Is(err, checkoutapp.ErrEmptyCart):
				emptyCart.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent checkout failed: %v", err)
	}

	if placed.Load() != 1 || emptyCart.Load() != 1 {
		t.Fatalf("expected exactly one order and one EmptyCart, got placed=%d empty=%d",
			placed.Load(), emptyCart.Load())
	}
	orders, _ := f.orders.ListByOwner(ctx, owner)
	if len(orders) != 1 {
		t.Fatalf("expected exactly one order, got %d", len(orders))
	}
}
