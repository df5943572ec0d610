package postgres

import (
	"context"
	"errors"
	"fmt"

	dominv "github.com/Zhima-Mochi/shopfront/internal/domain/inventory"
	domprod "github.com/Zhima-Mochi/shopfront/internal/domain/product"
	"github.com/jackc/pgx/v5"
)

// Ledger implements the inventory ledger and the catalog read port over the
// products table, so ledger mutations hit the same persisted stock field the
// catalog reports. The conditional UPDATE makes TryDecrement linearizable per
// product row without application-side locking.
type Ledger struct {
	store *Store
}

func NewLedger(store *Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) TryDecrement(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return dominv.ErrInvalidQuantity
	}

	tag, err := l.store.q(ctx).Exec(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
		productID, qty,
	)
	if err != nil {
		return fmt.Errorf("ledger: decrement: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	available, err := l.Stock(ctx, productID)
	if err != nil {
		return err
	}
	return &dominv.InsufficientStockError{
		ProductID: productID,
		Requested: qty,
		Available: available,
	}
}

func (l *Ledger) Increment(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return dominv.ErrInvalidQuantity
	}

	tag, err := l.store.q(ctx).Exec(ctx,
		`UPDATE products SET stock = stock + $2 WHERE id = $1`,
		productID, qty,
	)
	if err != nil {
		return fmt.Errorf("ledger: increment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return dominv.ErrNotFound
	}
	return nil
}

func (l *Ledger) Stock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := l.store.q(ctx).QueryRow(ctx,
		`SELECT stock FROM products WHERE id = $1`,
		productID,
	).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, dominv.ErrNotFound
		}
		return 0, fmt.Errorf("ledger: stock: %w", err)
	}
	return stock, nil
}

func (l *Ledger) GetProduct(ctx context.Context, id string) (*domprod.Product, error) {
	var p domprod.Product
	err := l.store.q(ctx).QueryRow(ctx,
		`SELECT id, name, price, stock FROM products WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domprod.ErrNotFound
		}
		return nil, fmt.Errorf("ledger: get product: %w", err)
	}
	return &p, nil
}

// UpsertProduct seeds or replaces a catalog row. Used by wiring and tests.
func (l *Ledger) UpsertProduct(ctx context.Context, p domprod.Product) error {
	_, err := l.store.q(ctx).Exec(ctx,
		`INSERT INTO products (id, name, price, stock)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = $2, price = $3, stock = $4`,
		p.ID, p.Name, p.Price, p.Stock,
	)
	if err != nil {
		return fmt.Errorf("ledger: upsert product: %w", err)
	}
	return nil
}
