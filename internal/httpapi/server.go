// Package httpapi exposes the storefront over JSON HTTP. Handlers stay
// thin: decode, call the service, encode, map errors in one place.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	authapp "github.com/francium/storefront/internal/auth/app"
	cartapp "github.com/francium/storefront/internal/cart/app"
	catalogapp "github.com/francium/storefront/internal/catalog/app"
	checkoutapp "github.com/francium/storefront/internal/checkout/app"
	orderapp "github.com/francium/storefront/internal/order/app"
	"github.com/francium/storefront/pkg/metrics"
)

type Server struct {
	log      *slog.Logger
	auth     *authapp.Service
	catalog  *catalogapp.Service
	cart     *cartapp.Service
	checkout *checkoutapp.Service
	orders   *orderapp.Service
	metrics  *metrics.ServerMetrics
}

type Options struct {
	Log      *slog.Logger
	Auth     *authapp.Service
	Catalog  *catalogapp.Service
	Cart     *cartapp.Service
	Checkout *checkoutapp.Service
	Orders   *orderapp.Service
	Metrics  *metrics.ServerMetrics
}

func NewServer(opts Options) *Server {
	return &Server{
		log:      opts.Log,
		auth:     opts.Auth,
		catalog:  opts.Catalog,
		cart:     opts.Cart,
		checkout: opts.Checkout,
		orders:   opts.Orders,
		metrics:  opts.Metrics,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metrics.Handler())

	mux.Handle("POST /api/auth/register", s.instrument("auth_register", http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /api/auth/login", s.instrument("auth_login", http.HandlerFunc(s.handleLogin)))

	mux.Handle("GET /api/products", s.instrument("products_list", http.HandlerFunc(s.handleListProducts)))
	mux.Handle("GET /api/products/{id}", s.instrument("products_get", http.HandlerFunc(s.handleGetProduct)))
	mux.Handle("POST /api/products", s.instrument("products_create", s.authenticated(s.adminOnly(s.handleCreateProduct))))

	mux.Handle("GET /api/cart", s.instrument("cart_get", s.authenticated(s.handleGetCart)))
	mux.Handle("POST /api/cart/items", s.instrument("cart_add_item", s.authenticated(s.handleAddCartItem)))
	mux.Handle("DELETE /api/cart/items/{productID}", s.instrument("cart_remove_item", s.authenticated(s.handleRemoveCartItem)))
	mux.Handle("DELETE /api/cart", s.instrument("cart_clear", s.authenticated(s.handleClearCart)))

	mux.Handle("POST /api/checkout", s.instrument("checkout", s.authenticated(s.handleCheckout)))
	mux.Handle("POST /api/payments/settle", s.instrument("settle", s.authenticated(s.handleSettle)))

	mux.Handle("GET /api/orders", s.instrument("orders_list", s.authenticated(s.handleListOrders)))
	mux.Handle("GET /api/admin/orders", s.instrument("orders_list_all", s.authenticated(s.adminOnly(s.handleListAllOrders))))

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
