package httptransport_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	appCart "github.com/Zhima-Mochi/shopfront/internal/application/cart"
	appCheckout "github.com/Zhima-Mochi/shopfront/internal/application/checkout"
	appOrder "github.com/Zhima-Mochi/shopfront/internal/application/order"
	domprod "github.com/Zhima-Mochi/shopfront/internal/domain/product"
	httptransport "github.com/Zhima-Mochi/shopfront/internal/infrastructure/http"
	"github.com/Zhima-Mochi/shopfront/internal/infrastructure/id"
	"github.com/Zhima-Mochi/shopfront/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	products := memory.NewProductStore()
	products.Seed(
		domprod.Product{ID: "p-1", Name: "keyboard", Price: decimal.RequireFromString("10.00"), Stock: 5},
		domprod.Product{ID: "p-2", Name: "mouse", Price: decimal.RequireFromString("5.00"), Stock: 2},
	)

	carts := memory.NewCartRepository()
	orders := memory.NewOrderRepository()
	users := memory.NewUserDirectory("alice", "bob")
	idGen := id.NewUUIDGenerator()

	handler := httptransport.NewHandler(
		appCart.NewService(carts, products, products, users, idGen),
		appCheckout.NewService(carts, products, orders, users, idGen, nil, nil, nil),
		appOrder.NewService(orders, products, nil, nil),
	)

	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, owner string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if owner != "" {
		req.Header.Set("X-User-ID", owner)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestCartEndpoints(t *testing.T) {
	srv := newServer(t)

	resp, body := do(t, srv, http.MethodGet, "/cart", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["owner_id"])

	resp, body = do(t, srv, http.MethodPost, "/cart/items", "alice",
		map[string]any{"product_id": "p-1", "quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "20", body["total_price"])

	resp, _ = do(t, srv, http.MethodPost, "/cart/items", "alice",
		map[string]any{"product_id": "p-1", "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/cart/items", "alice",
		map[string]any{"product_id": "missing", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/cart/items", "mallory",
		map[string]any{"product_id": "p-1", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, srv, http.MethodDelete, "/cart/items/p-1", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["lines"])
}

func TestCheckoutEndpoint(t *testing.T) {
	srv := newServer(t)

	resp, _ := do(t, srv, http.MethodPost, "/cart/items", "alice",
		map[string]any{"product_id": "p-1", "quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, srv, http.MethodPost, "/checkout", "alice",
		map[string]any{"payment_method": "card"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "20", body["total_price"])
	assert.Equal(t, "card", body["payment_method"])
	require.NotEmpty(t, body["id"])

	// empty cart after checkout
	resp, _ = do(t, srv, http.MethodPost, "/checkout", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckoutEndpoint_InsufficientStock(t *testing.T) {
	srv := newServer(t)

	// cart wants more p-2 than exists: add 2 (all stock), then a second
	// owner drains it first
	resp, _ := do(t, srv, http.MethodPost, "/cart/items", "alice",
		map[string]any{"product_id": "p-2", "quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/cart/items", "bob",
		map[string]any{"product_id": "p-2", "quantity": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodPost, "/checkout", "bob", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPost, "/checkout", "alice", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestOrderEndpoints(t *testing.T) {
	srv := newServer(t)

	resp, _ := do(t, srv, http.MethodPost, "/cart/items", "alice",
		map[string]any{"product_id": "p-1", "quantity": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, placed := do(t, srv, http.MethodPost, "/checkout", "alice", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	orderID := placed["id"].(string)

	resp, body := do(t, srv, http.MethodGet, "/orders/"+orderID, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, orderID, body["id"])

	// ownership is enforced
	resp, _ = do(t, srv, http.MethodGet, "/orders/"+orderID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPut, "/orders/"+orderID+"/status", "alice",
		map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", body["status"])

	resp, _ = do(t, srv, http.MethodPut, "/orders/"+orderID+"/status", "alice",
		map[string]any{"status": "delivered"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPut, "/orders/"+orderID+"/status", "alice",
		map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPost, "/orders/"+orderID+"/cancel", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["status"])

	// cancelling twice is rejected
	resp, _ = do(t, srv, http.MethodPost, "/orders/"+orderID+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListOrdersEndpoint(t *testing.T) {
	srv := newServer(t)

	resp, _ := do(t, srv, http.MethodPost, "/cart/items", "alice",
		map[string]any{"product_id": "p-1", "quantity": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodPost, "/checkout", "alice", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/orders", nil)
	require.NoError(t, err)
	req.Header.Set("X-User-ID", "alice")

	httpResp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer httpResp.Body.Close()
	require.Equal(t, http.StatusOK, httpResp.StatusCode)

	var orders []map[string]any
	require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&orders))
	assert.Len(t, orders, 1)
}
