package order

import (
	"context"
	"errors"
	"time"

	dominv "github.com/Zhima-Mochi/shopfront/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/shopfront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/shopfront/internal/domain/outbox"
	"github.com/Zhima-Mochi/shopfront/internal/pkg/logging"

	"go.uber.org/zap"
)

const (
	// casAttempts bounds the reload-and-retry loop when a concurrent writer
	// wins the status compare-and-swap.
	casAttempts = 3

	publishTimeout = 300 * time.Millisecond
)

// Atomic runs fn inside one durable transaction where the store supports it,
// so the cancel-and-restore pair cannot be torn by a crash.
type Atomic interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service drives the order lifecycle state machine and the stock restoration
// that cancellation owes the ledger. Orders themselves stay immutable except
// for the status field.
type Service struct {
	orders    domain.Repository
	ledger    dominv.Ledger
	atomic    Atomic
	publisher domoutbox.Publisher
}

func NewService(orders domain.Repository, ledger dominv.Ledger, atomic Atomic, publisher domoutbox.Publisher) *Service {
	return &Service{
		orders:    orders,
		ledger:    ledger,
		atomic:    atomic,
		publisher: publisher,
	}
}

func (s *Service) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, domain.ErrNotFound
	}
	return s.orders.Get(ctx, orderID)
}

// GetForOwner fetches an order and verifies the requester owns it.
func (s *Service) GetForOwner(ctx context.Context, orderID, ownerID string) (*domain.Order, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.OwnerID != ownerID {
		return nil, domain.ErrUnauthorized
	}
	return o, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error) {
	return s.orders.ListByOwner(ctx, ownerID)
}

func (s *Service) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Order, error) {
	return s.orders.ListByStatus(ctx, status)
}

// UpdateStatus validates the transition table and writes the new status. A
// transition to CANCELLED is routed through Cancel so stock restoration can
// never be skipped.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next domain.Status) (*domain.Order, error) {
	if next == domain.StatusCancelled {
		return s.Cancel(ctx, orderID)
	}

	for attempt := 0; ; attempt++ {
		o, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !o.Status.CanTransitionTo(next) {
			return nil, &domain.InvalidTransitionError{From: o.Status, To: next}
		}

		err = s.orders.UpdateStatus(ctx, orderID, o.Status, next)
		if errors.Is(err, domain.ErrConflict) && attempt < casAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}

		s.publish(ctx, domain.NewOrderStatusChangedEvent(orderID, o.Status, next))
		logging.FromContext(ctx).Info("order_status_updated",
			zap.String("order_id", orderID),
			zap.String("from", string(o.Status)),
			zap.String("to", string(next)),
		)
		return s.orders.Get(ctx, orderID)
	}
}

// UpdateStatusForOwner is UpdateStatus with an ownership check first.
func (s *Service) UpdateStatusForOwner(ctx context.Context, orderID, ownerID string, next domain.Status) (*domain.Order, error) {
	if _, err := s.GetForOwner(ctx, orderID, ownerID); err != nil {
		return nil, err
	}
	return s.UpdateStatus(ctx, orderID, next)
}

// Cancel transitions the order to CANCELLED and restores exactly the stock
// its checkout consumed. The status write is a compare-and-swap, so when two
// cancellations race only the winner restores; the loser observes the
// terminal status and fails the transition check. A rejected cancel performs
// no stock mutation. A ledger failure during restore fails the cancellation;
// with an Atomic store the status flip rolls back with it, without one the
// error is surfaced to the caller.
func (s *Service) Cancel(ctx context.Context, orderID string) (*domain.Order, error) {
	var cancelled *domain.Order
	run := func(ctx context.Context) error {
		var err error
		cancelled, err = s.cancelOnce(ctx, orderID)
		return err
	}

	var err error
	if s.atomic != nil {
		err = s.atomic.WithinTx(ctx, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.NewOrderStatusChangedEvent(orderID, cancelled.Status, domain.StatusCancelled))
	s.publish(ctx, domain.NewOrderCancelledEvent(cancelled))
	logging.FromContext(ctx).Info("order_cancelled",
		zap.String("order_id", orderID),
		zap.Int("restored_units", cancelled.TotalItems()),
	)

	return s.orders.Get(ctx, orderID)
}

// CancelForOwner is Cancel with an ownership check first.
func (s *Service) CancelForOwner(ctx context.Context, orderID, ownerID string) (*domain.Order, error) {
	if _, err := s.GetForOwner(ctx, orderID, ownerID); err != nil {
		return nil, err
	}
	return s.Cancel(ctx, orderID)
}

// cancelOnce returns the order as it was before cancellation so callers know
// which transition was won.
func (s *Service) cancelOnce(ctx context.Context, orderID string) (*domain.Order, error) {
	for attempt := 0; ; attempt++ {
		o, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !o.Status.CanTransitionTo(domain.StatusCancelled) {
			return nil, &domain.InvalidTransitionError{From: o.Status, To: domain.StatusCancelled}
		}

		err = s.orders.UpdateStatus(ctx, orderID, o.Status, domain.StatusCancelled)
		if errors.Is(err, domain.ErrConflict) && attempt < casAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := s.restore(ctx, o); err != nil {
			return nil, err
		}
		return o, nil
	}
}

// restore adds back every order line, exact quantities. Detached from request
// cancellation: a half-restored order must not be left behind. Remaining lines
// are still attempted after a failure, and the first error is returned so that
// inside a transaction the status flip aborts together with the restore.
func (s *Service) restore(ctx context.Context, o *domain.Order) error {
	ctx = context.WithoutCancel(ctx)
	var firstErr error
	for _, l := range o.Lines {
		err := s.ledger.Increment(ctx, l.ProductID, l.Quantity)
		if err == nil {
			continue
		}
		logging.FromContext(ctx).Error("stock_restore_failed",
			zap.String("order_id", o.ID),
			zap.String("product_id", l.ProductID),
			zap.Int("quantity", l.Quantity),
			zap.Error(err),
		)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed",
			zap.String("event", e.EventName()),
			zap.Error(err),
		)
	}
}
