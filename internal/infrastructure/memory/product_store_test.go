package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	dominv "github.com/Zhima-Mochi/shopfront/internal/domain/inventory"
	domprod "github.com/Zhima-Mochi/shopfront/internal/domain/product"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore(stock int) *ProductStore {
	s := NewProductStore()
	s.Seed(domprod.Product{
		ID:    "p-1",
		Name:  "widget",
		Price: decimal.RequireFromString("10.00"),
		Stock: stock,
	})
	return s
}

func TestTryDecrement(t *testing.T) {
	ctx := context.Background()
	s := seededStore(10)

	require.NoError(t, s.TryDecrement(ctx, "p-1", 3))

	stock, err := s.Stock(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 7, stock)
}

func TestTryDecrement_Insufficient(t *testing.T) {
	ctx := context.Background()
	s := seededStore(5)

	err := s.TryDecrement(ctx, "p-1", 6)
	require.ErrorIs(t, err, dominv.ErrInsufficientStock)

	var ise *dominv.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "p-1", ise.ProductID)
	assert.Equal(t, 6, ise.Requested)
	assert.Equal(t, 5, ise.Available)

	// a rejected decrement leaves the stock untouched
	stock, err := s.Stock(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 5, stock)
}

func TestTryDecrement_Rejections(t *testing.T) {
	ctx := context.Background()
	s := seededStore(5)

	require.ErrorIs(t, s.TryDecrement(ctx, "missing", 1), dominv.ErrNotFound)
	require.ErrorIs(t, s.TryDecrement(ctx, "p-1", 0), dominv.ErrInvalidQuantity)
	require.ErrorIs(t, s.TryDecrement(ctx, "p-1", -2), dominv.ErrInvalidQuantity)
}

func TestTryDecrement_ExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	s := seededStore(5)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.TryDecrement(ctx, "p-1", 3)
		}()
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, dominv.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, winners)

	stock, err := s.Stock(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stock)
}

func TestTryDecrement_Concurrent(t *testing.T) {
	ctx := context.Background()
	initialStock := 20
	totalRequests := 50

	s := seededStore(initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.TryDecrement(ctx, "p-1", 1); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())

	stock, err := s.Stock(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stock)
}

func TestIncrement(t *testing.T) {
	ctx := context.Background()
	s := seededStore(5)

	require.NoError(t, s.Increment(ctx, "p-1", 3))

	stock, err := s.Stock(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 8, stock)

	require.ErrorIs(t, s.Increment(ctx, "p-1", 0), dominv.ErrInvalidQuantity)
}

func TestIncrement_RecreatesMissingRecord(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore()

	require.NoError(t, s.Increment(ctx, "p-9", 4))

	stock, err := s.Stock(ctx, "p-9")
	require.NoError(t, err)
	assert.Equal(t, 4, stock)
}

func TestGetProduct(t *testing.T) {
	ctx := context.Background()
	s := seededStore(5)

	p, err := s.GetProduct(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "widget", p.Name)
	assert.Equal(t, "10", p.Price.String())

	_, err = s.GetProduct(ctx, "missing")
	require.ErrorIs(t, err, domprod.ErrNotFound)
}
