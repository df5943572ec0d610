package observability

const (
	MUsecaseRequests MetricKey = "usecase_requests_total"
	MUsecaseDuration MetricKey = "usecase_duration_seconds"

	MCheckoutStockConflicts MetricKey = "checkout_stock_conflicts_total"
	MOrdersPlaced           MetricKey = "orders_placed_total"
	MOrdersCancelled        MetricKey = "orders_cancelled_total"
	MInventoryRestoredUnits MetricKey = "inventory_restored_units_total"
)
