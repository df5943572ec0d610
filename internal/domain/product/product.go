package product

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product: not found")

// Product is a catalog read model. Stock mutation happens only through the
// inventory ledger, which is backed by the same persisted stock field.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
}

// Catalog supplies product prices for cart-line snapshots and the initial
// stock values backing the inventory ledger. Catalog CRUD lives outside the
// storefront core.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
}
