package user

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user: not found")

// Directory validates owner references before cart and checkout operations.
// Account management itself is outside the storefront core.
type Directory interface {
	Exists(ctx context.Context, ownerID string) (bool, error)
}
