package worker

import (
	"context"

	domorder "github.com/Zhima-Mochi/shopfront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/shopfront/internal/domain/outbox"
	"github.com/Zhima-Mochi/shopfront/internal/observability"
	"github.com/Zhima-Mochi/shopfront/internal/observability/logctx"
)

// Worker observes order lifecycle events and keeps the domain counters
// (orders placed/cancelled, stock units restored) up to date.
type Worker struct {
	subscriber domoutbox.Subscriber
	log        observability.Logger

	placed    observability.Counter
	cancelled observability.Counter
	restored  observability.Counter
}

func New(subscriber domoutbox.Subscriber, tel observability.Telemetry) *Worker {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Worker{
		subscriber: subscriber,
		log:        tel.Logger().With(observability.F("component", "order_worker")),
		placed:     tel.Counter(observability.MOrdersPlaced),
		cancelled:  tel.Counter(observability.MOrdersCancelled),
		restored:   tel.Counter(observability.MInventoryRestoredUnits),
	}
}

func (w *Worker) Start() {
	w.subscriber.Subscribe(domorder.OrderPlacedEvent{}.EventName(), w.handleOrderPlaced)
	w.subscriber.Subscribe(domorder.OrderStatusChangedEvent{}.EventName(), w.handleStatusChanged)
	w.subscriber.Subscribe(domorder.OrderCancelledEvent{}.EventName(), w.handleOrderCancelled)
}

func (w *Worker) handleOrderPlaced(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderPlacedEvent)
	if !ok {
		return nil
	}
	w.placed.Add(1)
	logctx.FromOr(ctx, w.log).Info("order_placed",
		observability.F("order_id", evt.OrderID),
		observability.F("owner_id", evt.OwnerID),
		observability.F("total_items", evt.TotalItems),
		observability.F("total_price", evt.TotalPrice),
	)
	return nil
}

func (w *Worker) handleStatusChanged(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderStatusChangedEvent)
	if !ok {
		return nil
	}
	logctx.FromOr(ctx, w.log).Info("order_status_changed",
		observability.F("order_id", evt.OrderID),
		observability.F("from", string(evt.From)),
		observability.F("to", string(evt.To)),
	)
	return nil
}

func (w *Worker) handleOrderCancelled(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderCancelledEvent)
	if !ok {
		return nil
	}
	w.cancelled.Add(1)
	w.restored.Add(float64(evt.RestoredUnits))
	logctx.FromOr(ctx, w.log).Info("order_cancelled",
		observability.F("order_id", evt.OrderID),
		observability.F("restored_units", evt.RestoredUnits),
	)
	return nil
}
