package order

import "context"

type Repository interface {
	// Insert persists a freshly materialized order. Returns ErrConflict when
	// the id is already taken.
	Insert(ctx context.Context, o *Order) error

	Get(ctx context.Context, id string) (*Order, error)

	ListByOwner(ctx context.Context, ownerID string) ([]*Order, error)
	ListByStatus(ctx context.Context, status Status) ([]*Order, error)

	// UpdateStatus writes the new status only if the stored status still
	// equals from. Returns ErrConflict when another writer got there first,
	// so a lost cancellation race never restores stock twice.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
}
