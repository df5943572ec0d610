package redisledger

import (
	"context"
	"fmt"

	dominv "github.com/Zhima-Mochi/shopfront/internal/domain/inventory"
	"github.com/redis/go-redis/v9"
)

const stockKeyPrefix = "stock:"

// tryDecrementScript checks and subtracts in one server-side step, keeping
// the decrement linearizable per product key. It returns the remaining stock
// on success, -1 when the key is missing, and otherwise the available amount
// encoded as -(available+2) so the caller can report the shortage.
var tryDecrementScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return -1
end

current = tonumber(current)
if current >= quantity then
	return redis.call('DECRBY', key, quantity)
end

return -(current + 2)
`)

// Ledger is an inventory ledger backed by Redis counters. Suited to
// deployments where the hot stock path must be offloaded from the relational
// store; counters are seeded from the catalog via SetStock.
type Ledger struct {
	client *redis.Client
}

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func (l *Ledger) TryDecrement(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return dominv.ErrInvalidQuantity
	}

	result, err := tryDecrementScript.Run(ctx, l.client, []string{stockKey(productID)}, qty).Int()
	if err != nil {
		return fmt.Errorf("redis ledger: decrement: %w", err)
	}

	switch {
	case result >= 0:
		return nil
	case result == -1:
		return dominv.ErrNotFound
	default:
		return &dominv.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: -result - 2,
		}
	}
}

func (l *Ledger) Increment(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return dominv.ErrInvalidQuantity
	}
	if err := l.client.IncrBy(ctx, stockKey(productID), int64(qty)).Err(); err != nil {
		return fmt.Errorf("redis ledger: increment: %w", err)
	}
	return nil
}

func (l *Ledger) Stock(ctx context.Context, productID string) (int, error) {
	stock, err := l.client.Get(ctx, stockKey(productID)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, dominv.ErrNotFound
		}
		return 0, fmt.Errorf("redis ledger: get: %w", err)
	}
	return stock, nil
}

// SetStock seeds or overwrites the counter for a product.
func (l *Ledger) SetStock(ctx context.Context, productID string, qty int) error {
	if err := l.client.Set(ctx, stockKey(productID), qty, 0).Err(); err != nil {
		return fmt.Errorf("redis ledger: set: %w", err)
	}
	return nil
}

func stockKey(productID string) string { return stockKeyPrefix + productID }
