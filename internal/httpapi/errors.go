package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	authapp "github.com/francium/storefront/internal/auth/app"
	cartapp "github.com/francium/storefront/internal/cart/app"
	catalogapp "github.com/francium/storefront/internal/catalog/app"
	checkoutapp "github.com/francium/storefront/internal/checkout/app"
	orderapp "github.com/francium/storefront/internal/order/app"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps the service error taxonomy onto HTTP in one place.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := statusFromError(err)
	if status >= 500 {
		s.log.Error("request failed", slog.Any("err", err))
	}
	writeJSON(w, status, errorBody{Code: code, Message: err.Error()})
}

func statusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, checkoutapp.ErrEmptyCart):
		return http.StatusBadRequest, "EMPTY_CART"
	case errors.Is(err, checkoutapp.ErrInvalidAddress),
		errors.Is(err, cartapp.ErrInvalidQuantity),
		errors.Is(err, catalogapp.ErrInvalidInput),
		errors.Is(err, orderapp.ErrInvalidOrder),
		errors.Is(err, authapp.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, cartapp.ErrProductNotFound),
		errors.Is(err, catalogapp.ErrNotFound),
		errors.Is(err, orderapp.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, checkoutapp.ErrProductUnavailable):
		return http.StatusConflict, "PRODUCT_UNAVAILABLE"
	case errors.Is(err, authapp.ErrEmailTaken):
		return http.StatusConflict, "EMAIL_TAKEN"
	case errors.Is(err, authapp.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, checkoutapp.ErrPaymentInitiationFailed):
		// transient; the client may retry with backoff
		return http.StatusServiceUnavailable, "PAYMENT_INITIATION_FAILED"
	case errors.Is(err, checkoutapp.ErrPaymentRejected):
		return http.StatusUnprocessableEntity, "PAYMENT_REJECTED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
