package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/shopfront/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/shopfront/internal/domain/inventory"
	domprod "github.com/Zhima-Mochi/shopfront/internal/domain/product"
	domuser "github.com/Zhima-Mochi/shopfront/internal/domain/user"
	"github.com/Zhima-Mochi/shopfront/internal/pkg/logging"

	"go.uber.org/zap"
)

type IDGenerator interface {
	NewID() string
}

// Service owns per-owner cart state. Every mutation takes the owner's lock so
// read-modify-write cycles on one cart never interleave, while carts of
// different owners stay independent.
//
// Stock checks here are advisory only: they read the ledger without reserving
// anything. The binding check happens at checkout.
type Service struct {
	carts   domain.Repository
	catalog domprod.Catalog
	ledger  dominv.Ledger
	users   domuser.Directory
	idGen   IDGenerator

	owners ownerLocks
}

func NewService(
	carts domain.Repository,
	catalog domprod.Catalog,
	ledger dominv.Ledger,
	users domuser.Directory,
	idGen IDGenerator,
) *Service {
	return &Service{
		carts:   carts,
		catalog: catalog,
		ledger:  ledger,
		users:   users,
		idGen:   idGen,
	}
}

// GetOrCreate returns the owner's cart, lazily creating an empty one on first
// use. A cart is never hard-deleted afterwards.
func (s *Service) GetOrCreate(ctx context.Context, ownerID string) (*domain.Cart, error) {
	if err := s.checkOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	unlock := s.owners.lock(ownerID)
	defer unlock()

	return s.getOrCreateLocked(ctx, ownerID)
}

// AddItem appends qty units of a product, merging with an existing line. The
// merged quantity is validated against the current (non-binding) stock
// reading; the price snapshot is refreshed from the catalog.
func (s *Service) AddItem(ctx context.Context, ownerID, productID string, qty int) (*domain.Cart, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if err := s.checkOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	unlock := s.owners.lock(ownerID)
	defer unlock()

	crt, err := s.getOrCreateLocked(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	desired := qty
	if line, ok := crt.Line(productID); ok {
		desired = line.Quantity + qty
	}
	if err := s.checkStock(ctx, productID, desired); err != nil {
		return nil, err
	}

	if err := crt.Upsert(productID, desired, product.Price); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, crt); err != nil {
		return nil, fmt.Errorf("cart: save: %w", err)
	}

	logging.FromContext(ctx).Debug("cart_item_added",
		zap.String("owner_id", ownerID),
		zap.String("product_id", productID),
		zap.Int("quantity", desired),
	)
	return crt, nil
}

// UpdateQuantity sets the line to newQty. A non-positive quantity removes the
// line; updating an absent line is a no-op.
func (s *Service) UpdateQuantity(ctx context.Context, ownerID, productID string, newQty int) (*domain.Cart, error) {
	if err := s.checkOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	unlock := s.owners.lock(ownerID)
	defer unlock()

	crt, err := s.getOrCreateLocked(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if newQty <= 0 {
		if crt.Remove(productID) {
			if err := s.carts.Save(ctx, crt); err != nil {
				return nil, fmt.Errorf("cart: save: %w", err)
			}
		}
		return crt, nil
	}

	if _, ok := crt.Line(productID); !ok {
		return crt, nil
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.checkStock(ctx, productID, newQty); err != nil {
		return nil, err
	}

	if err := crt.Upsert(productID, newQty, product.Price); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, crt); err != nil {
		return nil, fmt.Errorf("cart: save: %w", err)
	}
	return crt, nil
}

// RemoveItem drops the product's line if present.
func (s *Service) RemoveItem(ctx context.Context, ownerID, productID string) (*domain.Cart, error) {
	if err := s.checkOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	unlock := s.owners.lock(ownerID)
	defer unlock()

	crt, err := s.getOrCreateLocked(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if crt.Remove(productID) {
		if err := s.carts.Save(ctx, crt); err != nil {
			return nil, fmt.Errorf("cart: save: %w", err)
		}
	}
	return crt, nil
}

// Clear empties all lines while keeping the cart record.
func (s *Service) Clear(ctx context.Context, ownerID string) (*domain.Cart, error) {
	if err := s.checkOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	unlock := s.owners.lock(ownerID)
	defer unlock()

	crt, err := s.getOrCreateLocked(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	crt.Clear()
	if err := s.carts.Save(ctx, crt); err != nil {
		return nil, fmt.Errorf("cart: save: %w", err)
	}
	return crt, nil
}

func (s *Service) getOrCreateLocked(ctx context.Context, ownerID string) (*domain.Cart, error) {
	crt, err := s.carts.GetByOwner(ctx, ownerID)
	switch {
	case err == nil:
		return crt, nil
	case errors.Is(err, domain.ErrNotFound):
		crt = domain.New(s.idGen.NewID(), ownerID)
		if err := s.carts.Save(ctx, crt); err != nil {
			return nil, fmt.Errorf("cart: save: %w", err)
		}
		return crt, nil
	default:
		return nil, fmt.Errorf("cart: load: %w", err)
	}
}

func (s *Service) checkOwner(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return domuser.ErrNotFound
	}
	ok, err := s.users.Exists(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("cart: owner lookup: %w", err)
	}
	if !ok {
		return domuser.ErrNotFound
	}
	return nil
}

func (s *Service) checkStock(ctx context.Context, productID string, qty int) error {
	available, err := s.ledger.Stock(ctx, productID)
	if err != nil {
		if errors.Is(err, dominv.ErrNotFound) {
			return domprod.ErrNotFound
		}
		return fmt.Errorf("cart: stock read: %w", err)
	}
	if available < qty {
		return &dominv.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: available,
		}
	}
	return nil
}

// ownerLocks hands out one mutex per owner id.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *ownerLocks) lock(ownerID string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[ownerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[ownerID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
