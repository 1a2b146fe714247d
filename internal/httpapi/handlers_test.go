package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	authapp "github.com/francium/storefront/internal/auth/app"
	authdomain "github.com/francium/storefront/internal/auth/domain"
	authmem "github.com/francium/storefront/internal/auth/infra/memory"
	cartapp "github.com/francium/storefront/internal/cart/app"
	"github.com/francium/storefront/internal/cart/infra/adapter"
	cartmem "github.com/francium/storefront/internal/cart/infra/memory"
	catalogapp "github.com/francium/storefront/internal/catalog/app"
	catalogmem "github.com/francium/storefront/internal/catalog/infra/memory"
	checkoutapp "github.com/francium/storefront/internal/checkout/app"
	"github.com/francium/storefront/internal/money"
	orderapp "github.com/francium/storefront/internal/order/app"
	ordermem "github.com/francium/storefront/internal/order/infra/memory"
	"github.com/francium/storefront/internal/payment"
)

const testSecret = "gateway-test-secret"

type stubGateway struct {
	calls atomic.Int64
}

func (g *stubGateway) CreateIntent(ctx context.Context, amount money.Money) (payment.Intent, error) {
	n := g.calls.Add(1)
	return payment.Intent{ID: fmt.Sprintf("intent_%d", n), Amount: amount}, nil
}

func (g *stubGateway) VerifySignature(intentID, transactionID, signature string) bool {
	return signature == payment.Sign(testSecret, intentID, transactionID)
}

type testEnv struct {
	handler  http.Handler
	users    *authmem.UserRepo
	auth     *authapp.Service
	products *catalogmem.ProductRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := slog.New(slog.DiscardHandler)

	users := authmem.NewUserRepo()
	authSvc := authapp.NewService(users, "jwt-test-secret")

	products := catalogmem.NewProductRepo()
	catalogSvc := catalogapp.NewService(products)
	catalogReader := adapter.NewCatalogServiceReader(catalogSvc)

	cartSvc := cartapp.NewService(cartmem.NewCartRepo(), catalogReader)
	orderSvc := orderapp.NewService(ordermem.NewOrderRepo())
	checkoutSvc := checkoutapp.NewService(cartSvc, catalogReader, &stubGateway{}, orderSvc, log)

	srv := NewServer(Options{
		Log:      log,
		Auth:     authSvc,
		Catalog:  catalogSvc,
		Cart:     cartSvc,
		Checkout: checkoutSvc,
		Orders:   orderSvc,
	})

	return &testEnv{handler: srv.Routes(), users: users, auth: authSvc, products: products}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) registerCustomer(t *testing.T, email string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "pass-12345", "full_name": "Test Customer",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sess struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return sess.AccessToken
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	_, err = e.users.Create(context.Background(), authdomain.User{
		Email: "admin@example.com", PasswordHash: string(hash),
		FullName: "Admin", Role: authdomain.RoleAdmin,
	})
	require.NoError(t, err)

	sess, err := e.auth.Login(context.Background(), "admin@example.com", "admin-pass")
	require.NoError(t, err)
	return sess.Token
}

func (e *testEnv) createProduct(t *testing.T, admin, name string, amount int64) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/products", admin, map[string]any{
		"name": name, "amount": amount,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p.ID
}

func TestListProductsLimit(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)
	for i := 0; i < 5; i++ {
		env.createProduct(t, admin, fmt.Sprintf("Widget %d", i), 1000)
	}

	list := func(path string) []json.RawMessage {
		rec := env.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return out
	}

	assert.Len(t, list("/api/products?limit=2"), 2)
	// absent, unparsable and oversized limits fall back to the
	// service's defaults instead of erroring
	assert.Len(t, list("/api/products"), 5)
	assert.Len(t, list("/api/products?limit=bogus"), 5)
	assert.Len(t, list("/api/products?limit=9999"), 5)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/cart", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminGuard(t *testing.T) {
	env := newTestEnv(t)
	customer := env.registerCustomer(t, "c1@example.com")

	rec := env.do(t, http.MethodGet, "/api/admin/orders", customer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/products", customer, map[string]any{"name": "x", "amount": 100})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCheckoutFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)
	customer := env.registerCustomer(t, "buyer@example.com")

	prodA := env.createProduct(t, admin, "Keyboard", 10000)
	prodB := env.createProduct(t, admin, "Mouse", 5000)

	// 2 x A + 1 x B
	rec := env.do(t, http.MethodPost, "/api/cart/items", customer, map[string]any{"product_id": prodA, "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPost, "/api/cart/items", customer, map[string]any{"product_id": prodB, "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cart struct {
		TotalAmount int64 `json:"total_amount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Equal(t, int64(25000), cart.TotalAmount)

	rec = env.do(t, http.MethodPost, "/api/checkout", customer, map[string]string{
		"shipping_address": "42 MG Road, Bengaluru",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var receipt struct {
		OrderID         string `json:"order_id"`
		GatewayIntentID string `json:"gateway_intent_id"`
		Amount          int64  `json:"amount"`
		Currency        string `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, int64(25000), receipt.Amount)
	assert.Equal(t, "INR", receipt.Currency)

	// settle with a valid signature
	sig := payment.Sign(testSecret, receipt.GatewayIntentID, "txn_1")
	rec = env.do(t, http.MethodPost, "/api/payments/settle", customer, map[string]any{
		"order_id":          receipt.OrderID,
		"gateway_intent_id": receipt.GatewayIntentID,
		"transaction_id":    "txn_1",
		"signature":         sig,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"outcome":"applied_paid"}`, rec.Body.String())

	// duplicate settle
	rec = env.do(t, http.MethodPost, "/api/payments/settle", customer, map[string]any{
		"order_id":          receipt.OrderID,
		"gateway_intent_id": receipt.GatewayIntentID,
		"transaction_id":    "txn_1",
		"signature":         sig,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"outcome":"already_processed"}`, rec.Body.String())

	// own order listing shows the paid order
	rec = env.do(t, http.MethodGet, "/api/orders", customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var orders []struct {
		ID            string `json:"id"`
		PaymentStatus string `json:"payment_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, receipt.OrderID, orders[0].ID)
	assert.Equal(t, "paid", orders[0].PaymentStatus)

	// admin sees it too
	rec = env.do(t, http.MethodGet, "/api/admin/orders", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := newTestEnv(t)
	customer := env.registerCustomer(t, "buyer@example.com")

	rec := env.do(t, http.MethodPost, "/api/checkout", customer, map[string]string{
		"shipping_address": "42 MG Road, Bengaluru",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "EMPTY_CART")
}

func TestSettleRejectedSignatureShape(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken(t)
	customer := env.registerCustomer(t, "buyer@example.com")

	prod := env.createProduct(t, admin, "Keyboard", 10000)
	rec := env.do(t, http.MethodPost, "/api/cart/items", customer, map[string]any{"product_id": prod, "quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/checkout", customer, map[string]string{
		"shipping_address": "42 MG Road, Bengaluru",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var receipt struct {
		OrderID         string `json:"order_id"`
		GatewayIntentID string `json:"gateway_intent_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))

	settle := func(orderID, intentID string) *httptest.ResponseRecorder {
		return env.do(t, http.MethodPost, "/api/payments/settle", customer, map[string]any{
			"order_id":          orderID,
			"gateway_intent_id": intentID,
			"transaction_id":    "txn_1",
			"signature":         "forged-signature",
		})
	}

	existing := settle(receipt.OrderID, receipt.GatewayIntentID)
	missing := settle("no-such-order", "no-such-intent")

	// a forged callback gets the same answer whether or not the order
	// exists
	assert.Equal(t, http.StatusBadRequest, existing.Code)
	assert.Equal(t, existing.Code, missing.Code)
	assert.JSONEq(t, existing.Body.String(), missing.Body.String())
	assert.JSONEq(t, `{"outcome":"rejected_signature"}`, existing.Body.String())

	// the order is still pending and settleable
	rec = env.do(t, http.MethodGet, "/api/orders", customer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []struct {
		PaymentStatus string `json:"payment_status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "pending", orders[0].PaymentStatus)
}

func TestRemoveAbsentCartItem(t *testing.T) {
	env := newTestEnv(t)
	customer := env.registerCustomer(t, "buyer@example.com")

	rec := env.do(t, http.MethodDelete, "/api/cart/items/not-in-cart", customer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
