package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrConflict        = errors.New("order: conflicting concurrent update")
	ErrUnauthorized    = errors.New("order: requester is not the owner")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrNoLines         = errors.New("order: at least one line is required")
)

// Line is an immutable purchased line. UnitPrice is the cart-time snapshot.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Shipping holds the optional destination fields captured at checkout.
type Shipping struct {
	Address string
	City    string
	State   string
	ZipCode string
	Country string
}

// Order is the immutable record of a purchase plus a mutable lifecycle
// status. Lines and TotalPrice are fixed at creation; only Status (and
// UpdatedAt) change afterwards.
type Order struct {
	ID            string
	OwnerID       string
	Lines         []Line
	Status        Status
	TotalPrice    decimal.Decimal
	Shipping      Shipping
	PaymentMethod string
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New materializes a PENDING order from checkout lines. TotalPrice is the sum
// of line subtotals.
func New(id, ownerID string, lines []Line) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	total := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		total = total.Add(l.Subtotal())
	}

	now := time.Now().UTC()
	return &Order{
		ID:         id,
		OwnerID:    ownerID,
		Lines:      append([]Line(nil), lines...),
		Status:     StatusPending,
		TotalPrice: total,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (o *Order) TotalItems() int {
	total := 0
	for _, l := range o.Lines {
		total += l.Quantity
	}
	return total
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Lines = append([]Line(nil), o.Lines...)
	return &clone
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
