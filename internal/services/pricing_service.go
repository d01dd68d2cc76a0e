package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/mintgate/api/internal/catalog"
)

var (
	// ErrPriceNotFound indicates the requested product has no catalog entry.
	ErrPriceNotFound = errors.New("pricing: price not found")
	// ErrPriceInvalidInput indicates the caller supplied invalid pricing parameters.
	ErrPriceInvalidInput = errors.New("pricing: invalid input")
	// ErrPricingUnavailable indicates pricing dependencies are currently unavailable.
	ErrPricingUnavailable = errors.New("pricing: unavailable")
)

// priceValuePattern accepts whole-unit digits followed by exactly two decimals.
var priceValuePattern = regexp.MustCompile(`^\d+\.\d{2}$`)

// PriceQuote pairs a resolved product identifier with its current price.
type PriceQuote struct {
	Product string
	Price   catalog.Price
}

// UpdatePriceCommand carries the fields for a price upsert.
type UpdatePriceCommand struct {
	Product     string
	Value       string
	Display     string
	Description string
}

// PricingService exposes catalog reads and administrative price updates.
type PricingService interface {
	// GetPrice returns the price for the product, falling back to the default
	// product when none is given.
	GetPrice(ctx context.Context, product string) (PriceQuote, error)
	// Products lists the known product identifiers.
	Products(ctx context.Context) []string
	// UpdatePrice validates and stores a new price for the product.
	UpdatePrice(ctx context.Context, cmd UpdatePriceCommand) (catalog.Price, error)
}

// PricingServiceDeps wires the dependencies required by the pricing service.
type PricingServiceDeps struct {
	Store          catalog.Store
	Currency       string
	DefaultProduct string
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type pricingService struct {
	store          catalog.Store
	currency       string
	defaultProduct string
	logger         func(ctx context.Context, event string, fields map[string]any)
}

// NewPricingService constructs a PricingService validating required dependencies.
func NewPricingService(deps PricingServiceDeps) (PricingService, error) {
	if deps.Store == nil {
		return nil, errors.New("pricing service: catalog store is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "USD"
	}

	defaultProduct := strings.TrimSpace(deps.DefaultProduct)
	if defaultProduct == "" {
		defaultProduct = "nft"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &pricingService{
		store:          deps.Store,
		currency:       currency,
		defaultProduct: defaultProduct,
		logger:         logger,
	}, nil
}

// GetPrice resolves the catalog entry for the product.
func (s *pricingService) GetPrice(_ context.Context, product string) (PriceQuote, error) {
	if s == nil || s.store == nil {
		return PriceQuote{}, ErrPricingUnavailable
	}

	product = strings.TrimSpace(product)
	if product == "" {
		product = s.defaultProduct
	}

	price, ok := s.store.Get(product)
	if !ok {
		return PriceQuote{}, ErrPriceNotFound
	}
	return PriceQuote{Product: product, Price: price}, nil
}

// Products lists the known product identifiers.
func (s *pricingService) Products(_ context.Context) []string {
	if s == nil || s.store == nil {
		return nil
	}
	return s.store.Keys()
}

// UpdatePrice validates the command and upserts the catalog entry. The stored
// currency is always the configured one regardless of caller input.
func (s *pricingService) UpdatePrice(ctx context.Context, cmd UpdatePriceCommand) (catalog.Price, error) {
	if s == nil || s.store == nil {
		return catalog.Price{}, ErrPricingUnavailable
	}

	product := strings.TrimSpace(cmd.Product)
	value := strings.TrimSpace(cmd.Value)
	if product == "" || value == "" {
		return catalog.Price{}, ErrPriceInvalidInput
	}
	if !priceValuePattern.MatchString(value) {
		return catalog.Price{}, ErrPriceInvalidInput
	}

	display := strings.TrimSpace(cmd.Display)
	if display == "" {
		display = catalog.FormatDisplay(value, s.currency)
	}

	description := strings.TrimSpace(cmd.Description)
	if description == "" {
		if existing, ok := s.store.Get(product); ok && existing.Description != "" {
			description = existing.Description
		} else {
			description = "Product"
		}
	}

	price := catalog.Price{
		Value:       value,
		Currency:    s.currency,
		Display:     display,
		Description: description,
	}
	s.store.Upsert(product, price)

	s.logger(ctx, "pricing.updated", map[string]any{
		"product": product,
		"value":   value,
	})
	return price, nil
}
