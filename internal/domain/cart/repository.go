package cart

import "context"

type Repository interface {
	// GetByOwner returns the owner's cart or ErrNotFound when none has been
	// created yet. Get-or-create semantics live in the application service.
	GetByOwner(ctx context.Context, ownerID string) (*Cart, error)

	// Save upserts the cart and all of its lines.
	Save(ctx context.Context, c *Cart) error
}
