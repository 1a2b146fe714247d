package domain

import (
	"time"

	"github.com/francium/storefront/internal/money"
)

type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Price       money.Money
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
