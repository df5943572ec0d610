package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	appCart "github.com/Zhima-Mochi/shopfront/internal/application/cart"
	appCheckout "github.com/Zhima-Mochi/shopfront/internal/application/checkout"
	appOrder "github.com/Zhima-Mochi/shopfront/internal/application/order"
	domainCart "github.com/Zhima-Mochi/shopfront/internal/domain/cart"
	domainInventory "github.com/Zhima-Mochi/shopfront/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/shopfront/internal/domain/order"
	domainProduct "github.com/Zhima-Mochi/shopfront/internal/domain/product"
	domainUser "github.com/Zhima-Mochi/shopfront/internal/domain/user"
	"github.com/Zhima-Mochi/shopfront/internal/pkg/logging"

	"go.uber.org/zap"
)

// ownerHeader identifies the requester. Authentication itself is handled
// upstream; the core only needs the resolved owner id.
const ownerHeader = "X-User-ID"

type Handler struct {
	cartService     *appCart.Service
	checkoutService *appCheckout.Service
	orderService    *appOrder.Service
}

func NewHandler(cartSvc *appCart.Service, checkoutSvc *appCheckout.Service, orderSvc *appOrder.Service) *Handler {
	return &Handler{
		cartService:     cartSvc,
		checkoutService: checkoutSvc,
		orderService:    orderSvc,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("POST /cart/items", h.handleAddItem)
	mux.HandleFunc("PUT /cart/items", h.handleUpdateQuantity)
	mux.HandleFunc("DELETE /cart/items/{productID}", h.handleRemoveItem)
	mux.HandleFunc("DELETE /cart", h.handleClearCart)

	mux.HandleFunc("POST /checkout", h.handleCheckout)
	mux.HandleFunc("POST /checkout/preview", h.handlePreview)

	mux.HandleFunc("GET /orders", h.handleListOrders)
	mux.HandleFunc("GET /orders/{orderID}", h.handleGetOrder)
	mux.HandleFunc("PUT /orders/{orderID}/status", h.handleUpdateStatus)
	mux.HandleFunc("POST /orders/{orderID}/cancel", h.handleCancelOrder)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return withRequestLog(mux)
}

// withRequestLog scopes the context logger per request so service logs carry
// the owner and route without threading them explicitly.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithFields(r.Context(),
			zap.String("owner_id", owner(r)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type cartLineResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type cartResponse struct {
	ID         string             `json:"id"`
	OwnerID    string             `json:"owner_id"`
	Lines      []cartLineResponse `json:"lines"`
	TotalPrice string             `json:"total_price"`
	TotalItems int                `json:"total_items"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

func toCartResponse(c *domainCart.Cart) cartResponse {
	resp := cartResponse{
		ID:         c.ID,
		OwnerID:    c.OwnerID,
		Lines:      make([]cartLineResponse, 0, len(c.Lines)),
		TotalPrice: c.TotalPrice().String(),
		TotalItems: c.TotalItems(),
		UpdatedAt:  c.UpdatedAt,
	}
	for _, l := range c.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.String(),
			Subtotal:  l.Subtotal().String(),
		})
	}
	return resp
}

type orderLineResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	OwnerID       string              `json:"owner_id"`
	Status        domainOrder.Status  `json:"status"`
	Lines         []orderLineResponse `json:"lines"`
	TotalPrice    string              `json:"total_price"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	Notes         string              `json:"notes,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

func toOrderResponse(o *domainOrder.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		OwnerID:       o.OwnerID,
		Status:        o.Status,
		Lines:         make([]orderLineResponse, 0, len(o.Lines)),
		TotalPrice:    o.TotalPrice.String(),
		PaymentMethod: o.PaymentMethod,
		Notes:         o.Notes,
		CreatedAt:     o.CreatedAt,
	}
	for _, l := range o.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.String(),
			Subtotal:  l.Subtotal().String(),
		})
	}
	return resp
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.cartService.GetOrCreate(r.Context(), owner(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	c, err := h.cartService.AddItem(r.Context(), owner(r), req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	c, err := h.cartService.UpdateQuantity(r.Context(), owner(r), req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.cartService.RemoveItem(r.Context(), owner(r), r.PathValue("productID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.cartService.Clear(r.Context(), owner(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address,omitempty"`
	ShippingCity    string `json:"shipping_city,omitempty"`
	ShippingState   string `json:"shipping_state,omitempty"`
	ShippingZipCode string `json:"shipping_zip_code,omitempty"`
	ShippingCountry string `json:"shipping_country,omitempty"`
	PaymentMethod   string `json:"payment_method,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	ord, err := h.checkoutService.Checkout(r.Context(), owner(r), appCheckout.Input{
		ShippingAddress: req.ShippingAddress,
		ShippingCity:    req.ShippingCity,
		ShippingState:   req.ShippingState,
		ShippingZipCode: req.ShippingZipCode,
		ShippingCountry: req.ShippingCountry,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(ord))
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.checkoutService.PreviewCheckout(r.Context(), owner(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListByOwner(r.Context(), owner(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orderService.GetForOwner(r.Context(), r.PathValue("orderID"), owner(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := domainOrder.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	o, err := h.orderService.UpdateStatusForOwner(r.Context(), r.PathValue("orderID"), owner(r), status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orderService.CancelForOwner(r.Context(), r.PathValue("orderID"), owner(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func owner(r *http.Request) string {
	return r.Header.Get(ownerHeader)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainCart.ErrNotFound),
		errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, domainProduct.ErrNotFound),
		errors.Is(err, domainUser.ErrNotFound),
		errors.Is(err, domainInventory.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domainOrder.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, domainInventory.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domainCart.ErrInvalidQuantity),
		errors.Is(err, domainCart.ErrEmptyCart),
		errors.Is(err, domainInventory.ErrInvalidQuantity),
		errors.Is(err, domainOrder.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domainOrder.ErrConflict):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
