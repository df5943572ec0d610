package inventory

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// InsufficientStockError carries the requested and available quantities of a
// failed decrement. It matches ErrInsufficientStock under errors.Is.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %s (requested %d, available %d)", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Ledger is the authoritative per-product stock counter. All stock mutations
// in the system go through it; no other component writes stock directly.
//
// TryDecrement must be linearizable per product: two concurrent decrements on
// the same product never both succeed when only one has enough stock.
// Synchronization is scoped per product key, so operations on disjoint
// products do not contend.
type Ledger interface {
	// TryDecrement atomically checks that at least qty units are available
	// and subtracts them. On shortage it leaves the stock unchanged and
	// returns an *InsufficientStockError.
	TryDecrement(ctx context.Context, productID string, qty int) error

	// Increment unconditionally adds qty units back. Used for compensation
	// on checkout abort and restoration on order cancellation.
	Increment(ctx context.Context, productID string, qty int) error

	// Stock reports the current reading for advisory (non-binding) checks.
	Stock(ctx context.Context, productID string) (int, error)
}
