package httpapi

import (
	"net/http"
	"strconv"
	"time"

	authapp "github.com/francium/storefront/internal/auth/app"
	cartdomain "github.com/francium/storefront/internal/cart/domain"
	catalogdomain "github.com/francium/storefront/internal/catalog/domain"
	checkoutapp "github.com/francium/storefront/internal/checkout/app"
	"github.com/francium/storefront/internal/money"
	orderdomain "github.com/francium/storefront/internal/order/domain"
)

// --- auth ---

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type sessionResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        userView `json:"user"`
}

type userView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_ARGUMENT", Message: "invalid json"})
		return
	}

	sess, err := s.auth.Register(r.Context(), authapp.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
		Address:  req.Address,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSession(sess))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_ARGUMENT", Message: "invalid json"})
		return
	}

	sess, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSession(sess))
}

func toSession(sess authapp.Session) sessionResponse {
	return sessionResponse{
		AccessToken: sess.Token,
		TokenType:   "bearer",
		User: userView{
			ID:       sess.User.ID,
			Email:    sess.User.Email,
			FullName: sess.User.FullName,
			Role:     string(sess.User.Role),
		},
	}
}

// --- catalog ---

type productView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Available   bool   `json:"available"`
}

func toProductView(p catalogdomain.Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Amount:      p.Price.Amount,
		Currency:    p.Price.Currency,
		Available:   p.Available,
	}
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	// a missing or malformed limit falls back to the service default;
	// the service also caps oversized values
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	products, err := s.catalog.ListProducts(r.Context(), r.URL.Query().Get("query"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, toProductView(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductView(p))
}

type createProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_ARGUMENT", Message: "invalid json"})
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = money.DefaultCurrency
	}

	p, err := s.catalog.CreateProduct(r.Context(), req.Name, req.Description, req.Category,
		money.Money{Amount: req.Amount, Currency: currency})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductView(p))
}

// --- cart ---

type cartItemView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type cartView struct {
	Items       []cartItemView `json:"items"`
	TotalAmount int64          `json:"total_amount"`
	Currency    string         `json:"currency"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func toCartView(c cartdomain.Cart) cartView {
	items := make([]cartItemView, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, cartItemView{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  int32(it.Quantity),
			Amount:    it.UnitPrice.Amount,
			Currency:  it.UnitPrice.Currency,
		})
	}
	return cartView{
		Items:       items,
		TotalAmount: c.Total.Amount,
		Currency:    c.Total.Currency,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	ident, _ := identityFrom(r.Context())

	cart, err := s.cart.Get(r.Context(), ident.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(cart))
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	ident, _ := identityFrom(r.Context())

	req := addCartItemRequest{Quantity: 1}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_ARGUMENT", Message: "invalid json"})
		return
	}

	cart, err := s.cart.AddItem(r.Context(), ident.UserID, req.ProductID, req.Quantity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(cart))
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	ident, _ := identityFrom(r.Context())

	cart, err := s.cart.RemoveItem(r.Context(), ident.UserID, r.PathValue("productID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(cart))
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	ident, _ := identityFrom(r.Context())

	if err := s.cart.Clear(r.Context(), ident.UserID); err != nil {
		s.writeError(w, err)
		return
	}
	cart, err := s.cart.Get(r.Context(), ident.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(cart))
}

// --- checkout & settlement ---

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
}

type checkoutResponse struct {
	OrderID         string `json:"order_id"`
	GatewayIntentID string `json:"gateway_intent_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ident, _ := identityFrom(r.Context())

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_ARGUMENT", Message: "invalid json"})
		return
	}

	receipt, err := s.checkout.Checkout(r.Context(), ident.UserID, req.ShippingAddress)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{
		OrderID:         receipt.OrderID,
		GatewayIntentID: receipt.GatewayIntentID,
		Amount:          receipt.Amount.Amount,
		Currency:        receipt.Amount.Currency,
	})
}

type settleRequest struct {
	OrderID         string `json:"order_id"`
	GatewayIntentID string `json:"gateway_intent_id"`
	TransactionID   string `json:"transaction_id"`
	Signature       string `json:"signature"`
	Captured        *bool  `json:"captured"`
}

type settleResponse struct {
	Outcome string `json:"outcome"`
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	ident, _ := identityFrom(r.Context())

	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_ARGUMENT", Message: "invalid json"})
		return
	}

	captured := true
	if req.Captured != nil {
		captured = *req.Captured
	}

	outcome, err := s.checkout.Settle(r.Context(), ident.UserID, checkoutapp.SettleRequest{
		OrderID:         req.OrderID,
		GatewayIntentID: req.GatewayIntentID,
		TransactionID:   req.TransactionID,
		Signature:       req.Signature,
		Captured:        captured,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, statusForOutcome(outcome), settleResponse{Outcome: string(outcome)})
}

// statusForOutcome keeps the response shape identical across outcomes;
// only the status code varies.
func statusForOutcome(outcome orderdomain.VerificationOutcome) int {
	switch outcome {
	case orderdomain.OutcomeRejectedSignature:
		return http.StatusBadRequest
	case orderdomain.OutcomeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusOK
	}
}

// --- orders ---

type orderItemView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type orderView struct {
	ID                   string          `json:"id"`
	Items                []orderItemView `json:"items"`
	TotalAmount          int64           `json:"total_amount"`
	Currency             string          `json:"currency"`
	PaymentStatus        string          `json:"payment_status"`
	FulfillmentStatus    string          `json:"fulfillment_status"`
	GatewayIntentID      string          `json:"gateway_intent_id"`
	GatewayTransactionID string          `json:"gateway_transaction_id,omitempty"`
	ShippingAddress      string          `json:"shipping_address"`
	CreatedAt            time.Time       `json:"created_at"`
}

func toOrderView(o orderdomain.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemView{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  int32(it.Quantity),
			Amount:    it.UnitPrice.Amount,
			Currency:  it.UnitPrice.Currency,
		})
	}
	return orderView{
		ID:                   o.ID,
		Items:                items,
		TotalAmount:          o.Total.Amount,
		Currency:             o.Total.Currency,
		PaymentStatus:        string(o.PaymentStatus),
		FulfillmentStatus:    string(o.FulfillmentStatus),
		GatewayIntentID:      o.GatewayIntentID,
		GatewayTransactionID: o.GatewayTransactionID,
		ShippingAddress:      o.ShippingAddress,
		CreatedAt:            o.CreatedAt,
	}
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	ident, _ := identityFrom(r.Context())

	orders, err := s.orders.ListByOwner(r.Context(), ident.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.orders.ListAll(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o))
	}
	writeJSON(w, http.StatusOK, out)
}
