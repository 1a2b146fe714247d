package domain

import (
	"time"

	"github.com/francium/storefront/internal/money"
)

// PaymentStatus moves pending -> paid or pending -> failed, exactly
// once, and never back. A failed order is terminal for payment; a new
// checkout creates a new order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type FulfillmentStatus string

const (
	FulfillmentPlaced     FulfillmentStatus = "placed"
	FulfillmentProcessing FulfillmentStatus = "processing"
	FulfillmentShipped    FulfillmentStatus = "shipped"
	FulfillmentCancelled  FulfillmentStatus = "cancelled"
)

// OrderItem is a frozen copy of a cart line taken at checkout time.
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  money.Quantity
	UnitPrice money.Money
}

func (it OrderItem) LineTotal() money.Money {
	return it.UnitPrice.MulQty(it.Quantity)
}

// Order is an append-only record of a checkout. Items, Total,
// ShippingAddress and CreatedAt never change after creation; only the
// two status fields and GatewayTransactionID mutate, each through a
// single transition path. GatewayTransactionID is set if and only if
// PaymentStatus is paid.
type Order struct {
	ID                   string
	Owner                string
	Items                []OrderItem
	Total                money.Money
	PaymentStatus        PaymentStatus
	FulfillmentStatus    FulfillmentStatus
	GatewayIntentID      string
	GatewayTransactionID string
	ShippingAddress      string
	CreatedAt            time.Time
}

// VerificationOutcome is the result of settling a payment callback
// against an order.
type VerificationOutcome string

const (
	OutcomeAppliedPaid       VerificationOutcome = "applied_paid"
	OutcomeAppliedFailed     VerificationOutcome = "applied_failed"
	OutcomeAlreadyProcessed  VerificationOutcome = "already_processed"
	OutcomeRejectedSignature VerificationOutcome = "rejected_signature"
	OutcomeNotFound          VerificationOutcome = "not_found"
)
