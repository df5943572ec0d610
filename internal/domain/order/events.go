package order

import "time"

// OrderPlacedEvent is emitted after a checkout fully commits.
type OrderPlacedEvent struct {
	OrderID    string
	OwnerID    string
	TotalItems int
	TotalPrice string
	OccurredAt time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:    o.ID,
		OwnerID:    o.OwnerID,
		TotalItems: o.TotalItems(),
		TotalPrice: o.TotalPrice.String(),
		OccurredAt: time.Now().UTC(),
	}
}

// OrderStatusChangedEvent is emitted on every accepted lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID    string
	From       Status
	To         Status
	OccurredAt time.Time
}

func (OrderStatusChangedEvent) EventName() string { return "order.status_changed" }

func NewOrderStatusChangedEvent(orderID string, from, to Status) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		OrderID:    orderID,
		From:       from,
		To:         to,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderCancelledEvent is emitted after a cancellation restored its stock.
type OrderCancelledEvent struct {
	OrderID       string
	OwnerID       string
	RestoredUnits int
	OccurredAt    time.Time
}

func (OrderCancelledEvent) EventName() string { return "order.cancelled" }

func NewOrderCancelledEvent(o *Order) OrderCancelledEvent {
	return OrderCancelledEvent{
		OrderID:       o.ID,
		OwnerID:       o.OwnerID,
		RestoredUnits: o.TotalItems(),
		OccurredAt:    time.Now().UTC(),
	}
}
