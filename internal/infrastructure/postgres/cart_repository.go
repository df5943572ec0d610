package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/shopfront/internal/domain/cart"
	"github.com/jackc/pgx/v5"
)

type CartRepository struct {
	store *Store
}

func NewCartRepository(store *Store) *CartRepository {
	return &CartRepository{store: store}
}

func (r *CartRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.Cart, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("cart repository: ownerID is empty")
	}

	q := r.store.q(ctx)

	var c domain.Cart
	err := q.QueryRow(ctx,
		`SELECT id, owner_id, created_at, updated_at FROM carts WHERE owner_id = $1`,
		ownerID,
	).Scan(&c.ID, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("cart repository: get: %w", err)
	}

	rows, err := q.Query(ctx,
		`SELECT product_id, quantity, unit_price
		 FROM cart_lines WHERE cart_id = $1 ORDER BY position`,
		c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("cart repository: lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.Line
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, fmt.Errorf("cart repository: scan line: %w", err)
		}
		c.Lines = append(c.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cart repository: lines: %w", err)
	}

	return &c, nil
}

// Save upserts the cart row and rewrites its lines. Runs inside one
// transaction so a reader never observes a half-written line set.
func (r *CartRepository) Save(ctx context.Context, c *domain.Cart) error {
	if c == nil || c.OwnerID == "" {
		return fmt.Errorf("cart repository: owner id is required")
	}

	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		q := r.store.q(ctx)

		_, err := q.Exec(ctx,
			`INSERT INTO carts (id, owner_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (owner_id) DO UPDATE SET updated_at = $4`,
			c.ID, c.OwnerID, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("cart repository: upsert cart: %w", err)
		}

		if _, err := q.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, c.ID); err != nil {
			return fmt.Errorf("cart repository: delete lines: %w", err)
		}

		for i, l := range c.Lines {
			_, err := q.Exec(ctx,
				`INSERT INTO cart_lines (cart_id, product_id, quantity, unit_price, position)
				 VALUES ($1, $2, $3, $4, $5)`,
				c.ID, l.ProductID, l.Quantity, l.UnitPrice, i,
			)
			if err != nil {
				return fmt.Errorf("cart repository: insert line: %w", err)
			}
		}
		return nil
	})
}
