package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mintgate/api/internal/platform/httpx"
	"github.com/mintgate/api/internal/services"
)

const maxOrderRequestBody = 8 * 1024

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	orders         services.OrderService
	defaultProduct string
}

// NewOrderHandlers constructs handlers backed by the order service. Requests
// that omit a product fall back to defaultProduct.
func NewOrderHandlers(orders services.OrderService, defaultProduct string) *OrderHandlers {
	return &OrderHandlers{
		orders:         orders,
		defaultProduct: strings.TrimSpace(defaultProduct),
	}
}

// Routes wires the order endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/create_order", h.createOrder)
	r.Post("/complete_order", h.completeOrder)
	r.Post("/get_client_token", h.clientToken)
}

type createOrderRequest struct {
	Product string `json:"product"`
	Intent  string `json:"intent"`
}

type completeOrderRequest struct {
	OrderID string `json:"order_id"`
	Intent  string `json:"intent"`
	Email   string `json:"email"`
}

type clientTokenRequest struct {
	CustomerID string `json:"customer_id"`
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createOrderRequest
	if err := readOptionalJSON(r, maxOrderRequestBody, &req); err != nil {
		h.writeBodyError(ctx, w, err)
		return
	}

	product := strings.TrimSpace(req.Product)
	if product == "" {
		product = h.defaultProduct
	}

	result, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		Product: product,
		Intent:  req.Intent,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	writeRawJSON(w, http.StatusOK, result.Raw)
}

func (h *OrderHandlers) completeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req completeOrderRequest
	if err := readOptionalJSON(r, maxOrderRequestBody, &req); err != nil {
		h.writeBodyError(ctx, w, err)
		return
	}

	result, err := h.orders.CompleteOrder(ctx, services.CompleteOrderCommand{
		OrderID: req.OrderID,
		Intent:  req.Intent,
		Email:   req.Email,
	})
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	// The provider body is forwarded verbatim, approval errors included, so
	// the browser widget can surface the provider's own details.
	writeRawJSON(w, http.StatusOK, result.Raw)
}

func (h *OrderHandlers) clientToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req clientTokenRequest
	if err := readOptionalJSON(r, maxOrderRequestBody, &req); err != nil {
		h.writeBodyError(ctx, w, err)
		return
	}

	token, err := h.orders.ClientToken(ctx, req.CustomerID)
	if err != nil {
		h.writeOrderError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(token))
}

func (h *OrderHandlers) writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
}

func (h *OrderHandlers) writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_id or intent is missing or invalid", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderUnknownProduct):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_product", "no price configured for the requested product", http.StatusInternalServerError))
	case errors.Is(err, services.ErrOrderAuthFailed):
		httpx.WriteError(ctx, w, httpx.NewError("provider_auth_failed", "payment provider rejected our credentials", http.StatusBadGateway))
	case errors.Is(err, services.ErrOrderCreationFailed),
		errors.Is(err, services.ErrOrderCompletionFailed),
		errors.Is(err, services.ErrOrderClientTokenFailed):
		httpx.WriteError(ctx, w, httpx.NewError("provider_error", "payment provider request failed", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "order operation failed", http.StatusInternalServerError))
	}
}
