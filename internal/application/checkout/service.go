package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domcart "github.com/Zhima-Mochi/shopfront/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/shopfront/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/shopfront/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/shopfront/internal/domain/outbox"
	domuser "github.com/Zhima-Mochi/shopfront/internal/domain/user"
	"github.com/Zhima-Mochi/shopfront/internal/observability"
	"github.com/Zhima-Mochi/shopfront/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	checkoutService = "checkout-service"
	useCaseCheckout = "checkout.commit"
	useCasePreview  = "checkout.preview"
	spanPrefix      = "UC."
	publishTimeout  = 300 * time.Millisecond
)

// Input carries the optional checkout fields captured with the order.
type Input struct {
	ShippingAddress string
	ShippingCity    string
	ShippingState   string
	ShippingZipCode string
	ShippingCountry string
	PaymentMethod   string
	Notes           string
}

// Preview is the advisory dry run result. Nothing is reserved.
type Preview struct {
	Lines       []PreviewLine
	TotalPrice  string
	TotalItems  int
	CanCheckout bool
}

type PreviewLine struct {
	ProductID  string
	Quantity   int
	UnitPrice  string
	Subtotal   string
	Available  int
	Sufficient bool
}

// Service converts a cart into a persisted order as one all-or-nothing
// operation: it reserves stock line by line in ascending product id order,
// materializes the order, and clears the cart. Any failure triggers exact
// compensating increments so an aborted checkout has zero net stock effect.
type Service struct {
	carts     domcart.Repository
	ledger    dominv.Ledger
	orders    domorder.Repository
	users     domuser.Directory
	idGen     IDGenerator
	atomic    Atomic
	publisher domoutbox.Publisher
	tel       observability.Telemetry

	log             observability.Logger
	reqCounter      observability.Counter
	durHistogram    observability.Histogram
	conflictCounter observability.Counter
}

func NewService(
	carts domcart.Repository,
	ledger dominv.Ledger,
	orders domorder.Repository,
	users domuser.Directory,
	idGen IDGenerator,
	atomic Atomic,
	publisher domoutbox.Publisher,
	tel observability.Telemetry,
) *Service {
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Service{
		carts:     carts,
		ledger:    ledger,
		orders:    orders,
		users:     users,
		idGen:     idGen,
		atomic:    atomic,
		publisher: publisher,
		tel:       tel,

		log:             tel.Logger().With(observability.F("service", checkoutService)),
		reqCounter:      tel.Counter(observability.MUsecaseRequests),
		durHistogram:    tel.Histogram(observability.MUsecaseDuration),
		conflictCounter: tel.Counter(observability.MCheckoutStockConflicts),
	}
}

// Checkout commits the owner's cart. It is synchronous: when it returns, the
// order is fully persisted and the cart cleared, or nothing changed at all.
func (s *Service) Checkout(ctx context.Context, ownerID string, in Input) (_ *domorder.Order, err error) {
	logger := logctx.FromOr(ctx, s.log).With(observability.F("use_case", useCaseCheckout))

	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+"Checkout",
		attribute.String("use_case", useCaseCheckout),
		attribute.String("cart.owner_id", ownerID),
	)
	start := time.Now()
	outcome := "success"

	defer func() {
		lat := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()

		s.reqCounter.Add(1,
			observability.L("use_case", useCaseCheckout),
			observability.L("outcome", outcome),
		)
		s.durHistogram.Observe(lat,
			observability.L("use_case", useCaseCheckout),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("latency_seconds", lat),
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if err := s.checkOwner(ctx, ownerID); err != nil {
		outcome = "owner_not_found"
		return nil, err
	}

	var placed *domorder.Order
	commit := func(ctx context.Context) error {
		var commitErr error
		placed, commitErr = s.commitCart(ctx, ownerID, in)
		return commitErr
	}

	if s.atomic != nil {
		err = s.atomic.WithinTx(ctx, commit)
	} else {
		err = commit(ctx)
	}
	if err != nil {
		switch {
		case errors.Is(err, domcart.ErrEmptyCart):
			outcome = "empty_cart"
		case errors.Is(err, dominv.ErrInsufficientStock):
			outcome = "insufficient_stock"
			s.conflictCounter.Add(1)
		default:
			outcome = "error"
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", placed.ID),
		attribute.String("order.total_price", placed.TotalPrice.String()),
	)
	s.publish(ctx, domorder.NewOrderPlacedEvent(placed))

	return placed, nil
}

// commitCart is the transaction body: reserve, materialize, persist, clear.
func (s *Service) commitCart(ctx context.Context, ownerID string, in Input) (*domorder.Order, error) {
	crt, err := s.carts.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, domcart.ErrNotFound) {
			return nil, domcart.ErrEmptyCart
		}
		return nil, fmt.Errorf("checkout: load cart: %w", err)
	}
	if crt.IsEmpty() {
		return nil, domcart.ErrEmptyCart
	}

	// Reserve in ascending product id order, never in cart insertion order:
	// all concurrent checkouts acquire per-product sections in the same
	// sequence, which rules out circular wait on overlapping carts.
	reserved, err := s.reserve(ctx, crt.Lines)
	if err != nil {
		return nil, err
	}

	lines := make([]domorder.Line, 0, len(crt.Lines))
	for _, l := range crt.Lines {
		lines = append(lines, domorder.Line{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	ord, err := domorder.New(s.idGen.NewID(), ownerID, lines)
	if err != nil {
		s.compensate(ctx, reserved)
		return nil, fmt.Errorf("checkout: materialize order: %w", err)
	}
	applyInput(ord, in)

	if err := s.orders.Insert(ctx, ord); err != nil {
		s.compensate(ctx, reserved)
		return nil, fmt.Errorf("checkout: persist order: %w", err)
	}

	crt.Clear()
	if err := s.carts.Save(ctx, crt); err != nil {
		s.compensate(ctx, reserved)
		return nil, fmt.Errorf("checkout: clear cart: %w", err)
	}

	return ord, nil
}

// reserve decrements every line and reports the lines already applied so the
// caller can reverse them exactly on abort.
func (s *Service) reserve(ctx context.Context, lines []domcart.Line) ([]domcart.Line, error) {
	ordered := append([]domcart.Line(nil), lines...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ProductID < ordered[j].ProductID })

	applied := make([]domcart.Line, 0, len(ordered))
	for _, l := range ordered {
		if err := s.ledger.TryDecrement(ctx, l.ProductID, l.Quantity); err != nil {
			s.compensate(ctx, applied)
			if errors.Is(err, dominv.ErrInsufficientStock) || errors.Is(err, dominv.ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("checkout: reserve %s: %w", l.ProductID, err)
		}
		applied = append(applied, l)
	}
	return applied, nil
}

// compensate reverses applied decrements, same quantities in reverse order.
// It runs detached from request cancellation: once a decrement landed, its
// reversal must land too.
func (s *Service) compensate(ctx context.Context, applied []domcart.Line) {
	ctx = context.WithoutCancel(ctx)
	for i := len(applied) - 1; i >= 0; i-- {
		l := applied[i]
		if err := s.ledger.Increment(ctx, l.ProductID, l.Quantity); err != nil {
			s.log.Error("checkout_compensation_failed",
				observability.F("product_id", l.ProductID),
				observability.F("quantity", l.Quantity),
				observability.F("error", err.Error()),
			)
		}
	}
}

// PreviewCheckout re-runs the sufficiency check against current ledger
// readings without reserving anything. Purely advisory; the authoritative
// check happens again inside Checkout.
func (s *Service) PreviewCheckout(ctx context.Context, ownerID string) (*Preview, error) {
	ctx, span := s.tel.Tracer().Start(ctx, spanPrefix+"PreviewCheckout",
		attribute.String("use_case", useCasePreview),
		attribute.String("cart.owner_id", ownerID),
	)
	defer span.End()

	if err := s.checkOwner(ctx, ownerID); err != nil {
		return nil, err
	}

	crt, err := s.carts.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, domcart.ErrNotFound) {
			return &Preview{TotalPrice: "0", CanCheckout: false}, nil
		}
		return nil, fmt.Errorf("checkout: load cart: %w", err)
	}

	preview := &Preview{
		TotalPrice:  crt.TotalPrice().String(),
		TotalItems:  crt.TotalItems(),
		CanCheckout: !crt.IsEmpty(),
	}
	for _, l := range crt.Lines {
		available, err := s.ledger.Stock(ctx, l.ProductID)
		if err != nil && !errors.Is(err, dominv.ErrNotFound) {
			return nil, fmt.Errorf("checkout: stock read: %w", err)
		}
		sufficient := err == nil && available >= l.Quantity
		if !sufficient {
			preview.CanCheckout = false
		}
		preview.Lines = append(preview.Lines, PreviewLine{
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice.String(),
			Subtotal:   l.Subtotal().String(),
			Available:  available,
			Sufficient: sufficient,
		})
	}
	return preview, nil
}

func (s *Service) checkOwner(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return domuser.ErrNotFound
	}
	ok, err := s.users.Exists(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("checkout: owner lookup: %w", err)
	}
	if !ok {
		return domuser.ErrNotFound
	}
	return nil
}

func (s *Service) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		s.log.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

func applyInput(o *domorder.Order, in Input) {
	if strings.TrimSpace(in.ShippingAddress) != "" {
		o.Shipping = domorder.Shipping{
			Address: in.ShippingAddress,
			City:    in.ShippingCity,
			State:   in.ShippingState,
			ZipCode: in.ShippingZipCode,
			Country: in.ShippingCountry,
		}
	}
	if strings.TrimSpace(in.PaymentMethod) != "" {
		o.PaymentMethod = in.PaymentMethod
	}
	if strings.TrimSpace(in.Notes) != "" {
		o.Notes = in.Notes
	}
}
