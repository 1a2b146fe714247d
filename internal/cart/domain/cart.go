package domain

import (
	"time"

	"github.com/francium/storefront/internal/money"
)

// CartItem is one line in a cart. UnitPrice is snapshotted from the
// catalog when the line is added; catalog price changes never move an
// existing line.
type CartItem struct {
	ProductID string
	Name      string
	Quantity  money.Quantity
	UnitPrice money.Money
}

func (it CartItem) LineTotal() money.Money {
	return it.UnitPrice.MulQty(it.Quantity)
}

// Cart is the single mutable cart of one owner. Items are ordered by
// insertion and unique by product. Total is always derived from the
// lines, never patched incrementally.
type Cart struct {
	Owner     string
	Items     []CartItem
	Total     money.Money
	UpdatedAt time.Time
}

func Empty(owner string) Cart {
	return Cart{Owner: owner, Total: money.Zero(money.DefaultCurrency)}
}

func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

// IndexOf returns the position of the line for productID, or -1.
func (c Cart) IndexOf(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// Recalculate recomputes Total as the sum over all lines.
func (c *Cart) Recalculate() {
	total := money.Zero(money.DefaultCurrency)
	if len(c.Items) > 0 {
		total = money.Zero(c.Items[0].UnitPrice.Currency)
	}
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	c.Total = total
}
