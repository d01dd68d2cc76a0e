package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mintgate/api/internal/platform/httpx"
	"github.com/mintgate/api/internal/services"
)

const maxPricingRequestBody = 4 * 1024

// PricingHandlers exposes catalog read and price administration endpoints.
type PricingHandlers struct {
	pricing services.PricingService
	now     func() time.Time
}

// NewPricingHandlers constructs handlers backed by the pricing service.
func NewPricingHandlers(pricing services.PricingService) *PricingHandlers {
	return &PricingHandlers{
		pricing: pricing,
		now:     time.Now,
	}
}

// Routes wires the pricing endpoints onto the provided router.
func (h *PricingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/get_price", h.getPrice)
	r.Get("/get_price/{product}", h.getPrice)
	r.Post("/update_price", h.updatePrice)
}

type priceResponse struct {
	Product     string `json:"product"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Display     string `json:"display"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

type updatePriceRequest struct {
	Product     string `json:"product"`
	Value       string `json:"value"`
	Display     string `json:"display"`
	Description string `json:"description"`
}

type updatePriceResponse struct {
	Message    string `json:"message"`
	NewPricing any    `json:"new_pricing"`
}

func (h *PricingHandlers) getPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pricing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing service unavailable", http.StatusServiceUnavailable))
		return
	}

	product := strings.TrimSpace(chi.URLParam(r, "product"))
	quote, err := h.pricing.GetPrice(ctx, product)
	if err != nil {
		h.writePricingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, priceResponse{
		Product:     quote.Product,
		Price:       quote.Price.Value,
		Currency:    quote.Price.Currency,
		Display:     quote.Price.Display,
		Description: quote.Price.Description,
		Timestamp:   h.now().UTC().Format(time.RFC3339),
	})
}

func (h *PricingHandlers) updatePrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pricing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req updatePriceRequest
	if err := readOptionalJSON(r, maxPricingRequestBody, &req); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	price, err := h.pricing.UpdatePrice(ctx, services.UpdatePriceCommand{
		Product:     req.Product,
		Value:       req.Value,
		Display:     req.Display,
		Description: req.Description,
	})
	if err != nil {
		h.writePricingError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, updatePriceResponse{
		Message:    fmt.Sprintf("Price updated for %s", strings.TrimSpace(req.Product)),
		NewPricing: price,
	})
}

func (h *PricingHandlers) writePricingError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPriceNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound).
			WithDetails(map[string]any{"available_products": h.pricing.Products(ctx)}))
	case errors.Is(err, services.ErrPriceInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product and a value like 5500.00 are required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "pricing operation failed", http.StatusInternalServerError))
	}
}
