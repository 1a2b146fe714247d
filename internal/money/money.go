// Package money holds the fixed-precision value types used for all
// monetary and quantity arithmetic. Amounts are stored in minor units
// (paise for INR), never as floats.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrNegativeAmount = errors.New("amount cannot be negative")
	ErrBlankCurrency  = errors.New("currency is required")
	ErrInvalidQty     = errors.New("quantity must be at least 1")
)

// DefaultCurrency is assumed wherever the caller does not say otherwise.
const DefaultCurrency = "INR"

const minorPerUnit = 100

// Money is an amount in minor units plus its currency code.
type Money struct {
	Amount   int64
	Currency string
}

func New(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, ErrNegativeAmount
	}
	currency = strings.TrimSpace(currency)
	if currency == "" {
		return Money{}, ErrBlankCurrency
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// Zero returns the zero amount in the given currency.
func Zero(currency string) Money {
	return Money{Amount: 0, Currency: currency}
}

func (m Money) Add(x Money) Money {
	return Money{Amount: m.Amount + x.Amount, Currency: m.Currency}
}

// MulQty returns the line total for qty units at this unit price.
func (m Money) MulQty(q Quantity) Money {
	return Money{Amount: m.Amount * int64(q), Currency: m.Currency}
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsPositive() bool { return m.Amount > 0 }

func (m Money) String() string {
	return fmt.Sprintf("%s %d.%02d", m.Currency, m.Amount/minorPerUnit, m.Amount%minorPerUnit)
}

// Quantity is a count of units on a cart or order line. Valid values
// start at 1; the zero value only appears transiently during decoding.
type Quantity int32

func NewQuantity(n int32) (Quantity, error) {
	if n < 1 {
		return 0, ErrInvalidQty
	}
	return Quantity(n), nil
}

// Add increments saturating at MaxInt32 so repeated adds can never
// wrap into a negative count.
func (q Quantity) Add(n Quantity) Quantity {
	sum := int64(q) + int64(n)
	if sum > math.MaxInt32 {
		return Quantity(math.MaxInt32)
	}
	return Quantity(sum)
}
