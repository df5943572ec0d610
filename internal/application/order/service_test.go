package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	apporder "github.com/Zhima-Mochi/shopfront/internal/application/order"
	dominv "github.com/Zhima-Mochi/shopfront/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/shopfront/internal/domain/order"
	domprod "github.com/Zhima-Mochi/shopfront/internal/domain/product"
	"github.com/Zhima-Mochi/shopfront/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	orders   *memory.OrderRepository
	products *memory.ProductStore
	service  *apporder.Service
}

// newFixture seeds the stock as it stands after the order's checkout already
// consumed its lines: p-1 started at 10 and the order holds 3.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	products := memory.NewProductStore()
	products.Seed(
		domprod.Product{ID: "p-1", Name: "keyboard", Price: decimal.RequireFromString("10.00"), Stock: 7},
	)

	orders := memory.NewOrderRepository()
	service := apporder.NewService(orders, products, nil, nil)

	return &fixture{orders: orders, products: products, service: service}
}

func (f *fixture) seedOrder(t *testing.T, id, ownerID string) *domorder.Order {
	t.Helper()

	o, err := domorder.New(id, ownerID, []domorder.Line{
		{ProductID: "p-1", Quantity: 3, UnitPrice: decimal.RequireFromString("10.00")},
	})
	require.NoError(t, err)
	require.NoError(t, f.orders.Insert(context.Background(), o))
	return o
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	stock, err := f.products.Stock(context.Background(), productID)
	require.NoError(t, err)
	return stock
}

func TestGetForOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "o-1", "alice")

	o, err := f.service.GetForOwner(ctx, "o-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "o-1", o.ID)

	_, err = f.service.GetForOwner(ctx, "o-1", "bob")
	require.ErrorIs(t, err, domorder.ErrUnauthorized)

	_, err = f.service.GetForOwner(ctx, "missing", "alice")
	require.ErrorIs(t, err, domorder.ErrNotFound)
}

func TestUpdateStatus_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "o-1", "alice")

	for _, next := range []domorder.Status{
		domorder.StatusConfirmed,
		domorder.StatusProcessing,
		domorder.StatusShipped,
		domorder.StatusDelivered,
	} {
		o, err := f.service.UpdateStatus(ctx, "o-1", next)
		require.NoError(t, err)
		assert.Equal(t, next, o.Status)
	}

	// delivered is terminal
	_, err := f.service.UpdateStatus(ctx, "o-1", domorder.StatusConfirmed)
	require.ErrorIs(t, err, domorder.ErrInvalidTransition)

	// the lifecycle never touched the ledger
	assert.Equal(t, 7, f.stock(t, "p-1"))
}

func TestUpdateStatus_RejectsSkippedSteps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "o-1", "alice")

	_, err := f.service.UpdateStatus(ctx, "o-1", domorder.StatusShipped)
	require.ErrorIs(t, err, domorder.ErrInvalidTransition)

	var ite *domorder.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, domorder.StatusPending, ite.From)
	assert.Equal(t, domorder.StatusShipped, ite.To)
}

func TestUpdateStatus_CancelledRoutesThroughCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "o-1", "alice")

	o, err := f.service.UpdateStatus(ctx, "o-1", domorder.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusCancelled, o.Status)

	// the generic status route still restores stock
	assert.Equal(t, 10, f.stock(t, "p-1"))
}

func TestCancel_RestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "o-1", "alice")

	o, err := f.service.Cancel(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusCancelled, o.Status)
	assert.Equal(t, 10, f.stock(t, "p-1"))
}

func TestCancel_FromLaterStatuses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "o-1", "alice")

	_, err := f.service.UpdateStatus(ctx, "o-1", domorder.StatusConfirmed)
	require.NoError(t, err)
	_, err = f.service.UpdateStatus(ctx, "o-1", domorder.StatusProcessing)
	require.NoError(t, err)

	o, err := f.service.Cancel(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusCancelled, o.Status)
	assert.Equal(t, 10, f.stock(t, "p-1"))
}

func TestCancel_DeliveredIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "o-1", "alice")

	for _, next := range []domorder.Status{
		domorder.StatusConfirmed,
		domorder.StatusProcessing,
		domorder.StatusShipped,
		domorder.StatusDelivered,
	} {
		_, err := f.service.UpdateStatus(ctx, "o-1", next)
		require.NoError(t, err)
	}

	_, err := f.service.Cancel(ctx, "o-1")
	require.ErrorIs(t, err, domorder.ErrInvalidTransition)

	// a rejected cancel performs no stock mutation
	assert.Equal(t, 7, f.stock(t, "p-1"))
}

func TestCancel_SecondCancelRejectedAndRestoredOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "o-1", "alice")

	_, err := f.service.Cancel(ctx, "o-1")
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, "o-1")
	require.ErrorIs(t, err, domorder.ErrInvalidTransition)

	assert.Equal(t, 10, f.stock(t, "p-1"))
}

// brokenLedger delegates reads but fails every restore.
type brokenLedger struct {
	dominv.Ledger
	err error
}

func (b *brokenLedger) Increment(ctx context.Context, productID string, qty int) error {
	return b.err
}

func TestCancel_FailedRestoreSurfaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "o-1", "alice")

	ledgerErr := errors.New("ledger offline")
	service := apporder.NewService(f.orders, &brokenLedger{Ledger: f.products, err: ledgerErr}, nil, nil)

	_, err := service.Cancel(ctx, "o-1")
	require.ErrorIs(t, err, ledgerErr)

	// nothing was added back
	assert.Equal(t, 7, f.stock(t, "p-1"))
}

func TestCancel_ConcurrentRestoresOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "o-1", "alice")

	const attempts = 10
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = f.service.Cancel(ctx, "o-1")
		}()
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, domorder.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, winners)

	// restored exactly once, regardless of how many cancels raced
	assert.Equal(t, 10, f.stock(t, "p-1"))
}

func TestCancelForOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "o-1", "alice")

	_, err := f.service.CancelForOwner(ctx, "o-1", "bob")
	require.ErrorIs(t, err, domorder.ErrUnauthorized)
	assert.Equal(t, 7, f.stock(t, "p-1"))

	o, err := f.service.CancelForOwner(ctx, "o-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusCancelled, o.Status)
}

func TestUpdateStatusForOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "o-1", "alice")

	_, err := f.service.UpdateStatusForOwner(ctx, "o-1", "bob", domorder.StatusConfirmed)
	require.ErrorIs(t, err, domorder.ErrUnauthorized)

	o, err := f.service.UpdateStatusForOwner(ctx, "o-1", "alice", domorder.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domorder.StatusConfirmed, o.Status)
}

func TestListByOwnerAndStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "o-1", "alice")
	f.seedOrder(t, "o-2", "alice")
	f.seedOrder(t, "o-3", "bob")

	byOwner, err := f.service.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, byOwner, 2)

	_, err = f.service.Cancel(ctx, "o-3")
	require.NoError(t, err)

	cancelled, err := f.service.ListByStatus(ctx, domorder.StatusCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, "o-3", cancelled[0].ID)
}
