package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appCart "github.com/Zhima-Mochi/shopfront/internal/application/cart"
	appCheckout "github.com/Zhima-Mochi/shopfront/internal/application/checkout"
	appOrder "github.com/Zhima-Mochi/shopfront/internal/application/order"
	domcart "github.com/Zhima-Mochi/shopfront/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/shopfront/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/shopfront/internal/domain/order"
	domprod "github.com/Zhima-Mochi/shopfront/internal/domain/product"
	httptransport "github.com/Zhima-Mochi/shopfront/internal/infrastructure/http"
	"github.com/Zhima-Mochi/shopfront/internal/infrastructure/id"
	"github.com/Zhima-Mochi/shopfront/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/shopfront/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/shopfront/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/shopfront/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/shopfront/internal/infrastructure/observability/zaplogger"
	orderworker "github.com/Zhima-Mochi/shopfront/internal/infrastructure/order/worker"
	"github.com/Zhima-Mochi/shopfront/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/shopfront/internal/infrastructure/postgres"
	redisledger "github.com/Zhima-Mochi/shopfront/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/shopfront/internal/observability"
	"github.com/Zhima-Mochi/shopfront/internal/pkg/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	serviceName := getenvDefault("SERVICE_NAME", "shopfront")
	env := getenvDefault("ENV", "dev")
	baseLogger := logging.MustNewLogger(serviceName, env)
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tel := buildTelemetry(serviceName, baseLogger)

	bus := outbox.NewBus(zaplogger.Wrap(baseLogger))
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	deps, cleanup, err := buildStores(ctx, baseLogger)
	if err != nil {
		baseLogger.Fatal("store_init_failed", zap.Error(err))
	}
	defer cleanup()

	idGenerator := id.NewUUIDGenerator()

	cartService := appCart.NewService(deps.carts, deps.catalog, deps.ledger, deps.users, idGenerator)
	checkoutService := appCheckout.NewService(
		deps.carts, deps.ledger, deps.orders, deps.users,
		idGenerator, deps.checkoutAtomic, bus, tel,
	)
	orderService := appOrder.NewService(deps.orders, deps.ledger, deps.orderAtomic, bus)

	orderWorker := orderworker.New(bus, tel)
	orderWorker.Start()

	handler := httptransport.NewHandler(cartService, checkoutService, orderService)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    getenvDefault("ADDR", ":8080"),
		Handler: mux,
	}

	go func() {
		baseLogger.Info("http_server_start",
			zap.String("addr", server.Addr),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error("http_server_error",
				zap.Error(err),
			)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("http_server_shutdown_error",
			zap.Error(err),
		)
	} else {
		baseLogger.Info("http_server_stopped")
	}
}

// deps groups the persistence ports; which backend fills them depends on
// POSTGRES_DSN and REDIS_ADDR.
type deps struct {
	carts   domcart.Repository
	orders  domorder.Repository
	catalog domprod.Catalog
	ledger  dominv.Ledger
	users   *memory.UserDirectory

	checkoutAtomic appCheckout.Atomic
	orderAtomic    appOrder.Atomic
}

// buildStores wires the persistence layer. With POSTGRES_DSN set the
// relational store backs everything and supplies the transaction boundary;
// otherwise in-memory stores are used and checkout relies on compensation.
// REDIS_ADDR moves only the stock counters to Redis.
func buildStores(ctx context.Context, log *zap.Logger) (*deps, func(), error) {
	// Identity stays in-process either way; authentication is out of scope
	// and the directory only answers existence checks.
	users := memory.NewUserDirectory(seedOwners()...)

	d := &deps{users: users}
	cleanup := func() {}

	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewStore(pool)
		ledger := postgres.NewLedger(store)
		if err := seedCatalogPostgres(ctx, ledger); err != nil {
			pool.Close()
			return nil, nil, err
		}

		d.carts = postgres.NewCartRepository(store)
		d.orders = postgres.NewOrderRepository(store)
		d.catalog = ledger
		d.ledger = ledger
		d.checkoutAtomic = store
		d.orderAtomic = store
		cleanup = pool.Close
		log.Info("store_backend_selected", zap.String("backend", "postgres"))
	} else {
		productStore := memory.NewProductStore()
		productStore.Seed(seedProducts()...)

		d.carts = memory.NewCartRepository()
		d.orders = memory.NewOrderRepository()
		d.catalog = productStore
		d.ledger = productStore
		log.Info("store_backend_selected", zap.String("backend", "memory"))
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		ledger := redisledger.NewLedger(client)
		if err := seedCounters(ctx, ledger); err != nil {
			cleanup()
			return nil, nil, err
		}
		d.ledger = ledger
		// The Redis counters sit outside the relational transaction, so
		// checkout falls back to compensating increments.
		d.checkoutAtomic = nil
		d.orderAtomic = nil

		prev := cleanup
		cleanup = func() {
			_ = client.Close()
			prev()
		}
		log.Info("stock_backend_selected", zap.String("backend", "redis"))
	}

	return d, cleanup, nil
}

func buildTelemetry(serviceName string, baseLogger *zap.Logger) observability.Telemetry {
	registry := prometrics.New(serviceName, "")

	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MCheckoutStockConflicts: registry.Counter(
			string(observability.MCheckoutStockConflicts),
			"Checkouts rejected because a line exceeded available stock.",
		),
		observability.MOrdersPlaced: registry.Counter(
			string(observability.MOrdersPlaced),
			"Orders successfully placed.",
		),
		observability.MOrdersCancelled: registry.Counter(
			string(observability.MOrdersCancelled),
			"Orders cancelled.",
		),
		observability.MInventoryRestoredUnits: registry.Counter(
			string(observability.MInventoryRestoredUnits),
			"Stock units returned to the ledger by cancellations.",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case",
		),
	}

	return telemetry.New(
		oteltrace.New(serviceName),
		zaplogger.Wrap(baseLogger),
		counters,
		histograms,
	)
}

func seedProducts() []domprod.Product {
	return []domprod.Product{
		{ID: "P-1001", Name: "Mechanical Keyboard", Price: decimal.RequireFromString("89.90"), Stock: 25},
		{ID: "P-1002", Name: "Wireless Mouse", Price: decimal.RequireFromString("34.50"), Stock: 40},
		{ID: "P-1003", Name: "USB-C Hub", Price: decimal.RequireFromString("59.00"), Stock: 15},
		{ID: "P-1004", Name: "27in Monitor", Price: decimal.RequireFromString("249.00"), Stock: 8},
		{ID: "P-1005", Name: "Laptop Stand", Price: decimal.RequireFromString("42.00"), Stock: 30},
	}
}

func seedOwners() []string {
	return []string{"alice", "bob", "carol"}
}

// seedCatalogPostgres inserts the demo products only when absent, so a
// restart never resets live stock.
func seedCatalogPostgres(ctx context.Context, ledger *postgres.Ledger) error {
	for _, p := range seedProducts() {
		_, err := ledger.GetProduct(ctx, p.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domprod.ErrNotFound) {
			return err
		}
		if err := ledger.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func seedCounters(ctx context.Context, ledger *redisledger.Ledger) error {
	for _, p := range seedProducts() {
		if _, err := ledger.Stock(ctx, p.ID); err == nil {
			continue
		} else if !errors.Is(err, dominv.ErrNotFound) {
			return err
		}
		if err := ledger.SetStock(ctx, p.ID, p.Stock); err != nil {
			return err
		}
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
