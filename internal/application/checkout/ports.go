package checkout

import "context"

type IDGenerator interface {
	NewID() string
}

// Atomic runs fn inside one durable transaction when the backing store
// supports it, so a crash mid-checkout rolls back already-applied ledger
// mutations together with the order write. The in-memory wiring passes nil
// and relies on the engine's compensating increments instead.
type Atomic interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
