package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/shopfront/internal/domain/order"
	"github.com/jackc/pgx/v5"
)

type OrderRepository struct {
	store *Store
}

func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

const orderColumns = `id, owner_id, status, total_price,
	shipping_address, shipping_city, shipping_state, shipping_zip_code, shipping_country,
	payment_method, notes, created_at, updated_at`

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		q := r.store.q(ctx)

		_, err := q.Exec(ctx,
			`INSERT INTO orders (`+orderColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			o.ID, o.OwnerID, o.Status, o.TotalPrice,
			o.Shipping.Address, o.Shipping.City, o.Shipping.State, o.Shipping.ZipCode, o.Shipping.Country,
			o.PaymentMethod, o.Notes, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("order repository: insert: %w", err)
		}

		for i, l := range o.Lines {
			_, err := q.Exec(ctx,
				`INSERT INTO order_lines (order_id, product_id, quantity, unit_price, position)
				 VALUES ($1, $2, $3, $4, $5)`,
				o.ID, l.ProductID, l.Quantity, l.UnitPrice, i,
			)
			if err != nil {
				return fmt.Errorf("order repository: insert line: %w", err)
			}
		}
		return nil
	})
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	q := r.store.q(ctx)

	row := q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("order repository: get: %w", err)
	}

	if err := r.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE owner_id = $1 ORDER BY created_at, id`,
		ownerID,
	)
}

func (r *OrderRepository) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at, id`,
		status,
	)
}

// UpdateStatus compares and swaps the status column; zero rows affected means
// the stored status moved underneath the caller.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.Status) error {
	if !from.CanTransitionTo(to) {
		return &domain.InvalidTransitionError{From: from, To: to}
	}

	tag, err := r.store.q(ctx).Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, from, to, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("order repository: update status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current domain.Status
	err = r.store.q(ctx).QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("order repository: status lookup: %w", err)
	}
	return domain.ErrConflict
}

func (r *OrderRepository) list(ctx context.Context, sql string, arg any) ([]*domain.Order, error) {
	rows, err := r.store.q(ctx).Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("order repository: list: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("order repository: scan: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order repository: list: %w", err)
	}

	for _, o := range out {
		if err := r.loadLines(ctx, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *OrderRepository) loadLines(ctx context.Context, o *domain.Order) error {
	rows, err := r.store.q(ctx).Query(ctx,
		`SELECT product_id, quantity, unit_price
		 FROM order_lines WHERE order_id = $1 ORDER BY position`,
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("order repository: lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.Line
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.UnitPrice); err != nil {
			return fmt.Errorf("order repository: scan line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	return rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID, &o.OwnerID, &o.Status, &o.TotalPrice,
		&o.Shipping.Address, &o.Shipping.City, &o.Shipping.State, &o.Shipping.ZipCode, &o.Shipping.Country,
		&o.PaymentMethod, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
