package memory

import (
	"context"
	"sync"

	dominv "github.com/Zhima-Mochi/shopfront/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/shopfront/internal/domain/product"
)

// ProductStore holds the product records and implements both the catalog
// read port and the inventory ledger over the same stock field, so a ledger
// mutation and a catalog read always observe one source of truth.
//
// Synchronization is per product: the outer lock only guards the map, each
// record carries its own mutex, so operations on disjoint products never
// contend.
type ProductStore struct {
	mu      sync.RWMutex
	records map[string]*productRecord
}

type productRecord struct {
	mu      sync.Mutex
	product domain.Product
}

func NewProductStore() *ProductStore {
	return &ProductStore{
		records: make(map[string]*productRecord),
	}
}

// Seed registers products with their initial stock. Intended for wiring and
// tests; replaces any existing record for the same id.
func (s *ProductStore) Seed(products ...domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.records[p.ID] = &productRecord{product: p}
	}
}

func (s *ProductStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	_ = ctx

	rec, err := s.record(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	clone := rec.product
	return &clone, nil
}

func (s *ProductStore) TryDecrement(ctx context.Context, productID string, qty int) error {
	_ = ctx
	if qty <= 0 {
		return dominv.ErrInvalidQuantity
	}

	rec, err := s.record(productID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.product.Stock < qty {
		return &dominv.InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: rec.product.Stock,
		}
	}
	rec.product.Stock -= qty
	return nil
}

func (s *ProductStore) Increment(ctx context.Context, productID string, qty int) error {
	_ = ctx
	if qty <= 0 {
		return dominv.ErrInvalidQuantity
	}

	// Compensating increments must not fail; restore a record if the product
	// vanished between decrement and increment.
	s.mu.Lock()
	rec, ok := s.records[productID]
	if !ok {
		rec = &productRecord{product: domain.Product{ID: productID}}
		s.records[productID] = rec
	}
	s.mu.Unlock()

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.product.Stock += qty
	return nil
}

func (s *ProductStore) Stock(ctx context.Context, productID string) (int, error) {
	_ = ctx

	rec, err := s.record(productID)
	if err != nil {
		return 0, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	return rec.product.Stock, nil
}

func (s *ProductStore) record(productID string) (*productRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[productID]
	if !ok {
		return nil, dominv.ErrNotFound
	}
	return rec, nil
}
