// Package payment adapts the external payment processor. The processor
// is treated as untrusted: slow, occasionally down, and liable to
// deliver the same callback more than once.
package payment

import (
	"context"
	"errors"

	"github.com/francium/storefront/internal/money"
)

var (
	// ErrUnavailable covers timeouts, transport failures and 5xx
	// responses. Callers may retry with backoff.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrRejected covers 4xx responses, e.g. an amount the processor
	// will not accept. Retrying the same request cannot succeed.
	ErrRejected = errors.New("payment gateway rejected request")
)

// Intent is the processor-side token for an authorized amount pending
// confirmation. Orders reference intents, they do not own them.
type Intent struct {
	ID     string
	Amount money.Money
}

type Gateway interface {
	CreateIntent(ctx context.Context, amount money.Money) (Intent, error)
	// VerifySignature reports whether signature is a valid MAC over
	// the (intentID, transactionID) pair. It never errors; a mismatch
	// is a security event for the caller to handle, not a fault.
	VerifySignature(intentID, transactionID, signature string) bool
}
