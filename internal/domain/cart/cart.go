package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("cart: not found")
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrEmptyCart       = errors.New("cart: cannot checkout with empty cart")
)

// Line is a single desired product inside a cart. UnitPrice is snapshotted
// from the catalog when the line is written, not re-read at checkout.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the per-owner mutable collection of lines prior to purchase.
// Lines are kept in insertion order and have no identity outside their cart;
// each product appears at most once.
type Cart struct {
	ID        string
	OwnerID   string
	Lines     []Line
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(id, ownerID string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		ID:        id,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Line returns the line for productID, if present.
func (c *Cart) Line(productID string) (Line, bool) {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}

// Upsert writes a line for productID, replacing quantity and price snapshot
// when the product is already present. Quantity must be positive.
func (c *Cart) Upsert(productID string, quantity int, unitPrice decimal.Decimal) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity = quantity
			c.Lines[i].UnitPrice = unitPrice
			c.touch()
			return nil
		}
	}
	c.Lines = append(c.Lines, Line{ProductID: productID, Quantity: quantity, UnitPrice: unitPrice})
	c.touch()
	return nil
}

// Remove drops the line for productID. Removing an absent line is a no-op.
func (c *Cart) Remove(productID string) bool {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			c.touch()
			return true
		}
	}
	return false
}

// Clear empties all lines. The cart record itself is never deleted.
func (c *Cart) Clear() {
	c.Lines = nil
	c.touch()
}

func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

func (c *Cart) TotalItems() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Lines = append([]Line(nil), c.Lines...)
	return &clone
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
