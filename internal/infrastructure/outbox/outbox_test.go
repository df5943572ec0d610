package outbox

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domorder "github.com/Zhima-Mochi/shopfront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/shopfront/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishAndFanout(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)
	bus.Start(ctx)
	defer bus.Stop(ctx)

	done := make(chan domoutbox.Event, 1)
	bus.Subscribe("order.status_changed", func(ctx context.Context, e domoutbox.Event) error {
		done <- e
		return nil
	})

	evt := domorder.NewOrderStatusChangedEvent("o-1", domorder.StatusPending, domorder.StatusConfirmed)
	require.NoError(t, bus.Publish(ctx, evt))

	select {
	case got := <-done:
		received, ok := got.(domorder.OrderStatusChangedEvent)
		require.True(t, ok)
		assert.Equal(t, "o-1", received.OrderID)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestBus_EventWithoutSubscriberIsDropped(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)
	bus.Start(ctx)
	defer bus.Stop(ctx)

	evt := domorder.NewOrderStatusChangedEvent("o-1", domorder.StatusPending, domorder.StatusConfirmed)
	require.NoError(t, bus.Publish(ctx, evt))
}

func TestBus_PublishAfterStopIsRejected(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)
	bus.Start(ctx)
	bus.Stop(ctx)

	evt := domorder.NewOrderStatusChangedEvent("o-1", domorder.StatusPending, domorder.StatusConfirmed)
	require.ErrorIs(t, bus.Publish(ctx, evt), ErrStopped)
}

func TestBus_StopDuringPublishes(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)
	bus.Start(ctx)

	evt := domorder.NewOrderStatusChangedEvent("o-1", domorder.StatusPending, domorder.StatusConfirmed)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if err := bus.Publish(ctx, evt); err != nil {
					assert.ErrorIs(t, err, ErrStopped)
					return
				}
			}
		}()
	}
	bus.Stop(ctx)
	wg.Wait()
}

func TestBus_PanickingHandlerDoesNotStopDispatch(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)
	bus.Start(ctx)
	defer bus.Stop(ctx)

	var delivered atomic.Int32
	done := make(chan struct{}, 2)

	bus.Subscribe("order.status_changed", func(ctx context.Context, e domoutbox.Event) error {
		panic("boom")
	})
	bus.Subscribe("order.status_changed", func(ctx context.Context, e domoutbox.Event) error {
		delivered.Add(1)
		done <- struct{}{}
		return nil
	})

	evt := domorder.NewOrderStatusChangedEvent("o-1", domorder.StatusPending, domorder.StatusConfirmed)
	require.NoError(t, bus.Publish(ctx, evt))
	require.NoError(t, bus.Publish(ctx, evt))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("dispatch stalled after handler panic")
		}
	}
	assert.Equal(t, int32(2), delivered.Load())
}
