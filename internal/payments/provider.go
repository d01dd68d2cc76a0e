package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Intent selects how an approved order is finalised with the payment provider.
type Intent string

const (
	// IntentCapture settles the payment immediately on completion.
	IntentCapture Intent = "CAPTURE"
	// IntentAuthorize places a hold to be captured later.
	IntentAuthorize Intent = "AUTHORIZE"
)

// ParseIntent normalises and validates a caller-supplied intent string.
func ParseIntent(value string) (Intent, error) {
	switch Intent(strings.ToUpper(strings.TrimSpace(value))) {
	case IntentCapture:
		return IntentCapture, nil
	case IntentAuthorize:
		return IntentAuthorize, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidIntent, value)
	}
}

// Path returns the URL path segment the provider expects for this intent.
func (i Intent) Path() string {
	return strings.ToLower(string(i))
}

// Amount is the money value attached to a purchase unit.
type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

// PurchaseUnit is a single line item within an order.
type PurchaseUnit struct {
	Amount      Amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

// OrderRequest describes the order to create with the provider.
type OrderRequest struct {
	Intent        Intent         `json:"intent"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

// OrderResult carries the provider's view of an order. Raw holds the exact
// response body so callers can forward it untouched.
type OrderResult struct {
	ID     string
	Status string
	Raw    json.RawMessage
}

// Provider is the outbound surface to the payment service provider.
type Provider interface {
	// AccessToken obtains a fresh OAuth access token.
	AccessToken(ctx context.Context) (string, error)
	// CreateOrder registers a new order with the provider.
	CreateOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	// CompleteOrder captures or authorises a previously approved order.
	CompleteOrder(ctx context.Context, orderID string, intent Intent) (OrderResult, error)
	// ClientToken issues a browser-side token, optionally bound to a customer.
	ClientToken(ctx context.Context, customerID string) (string, error)
}

var (
	// ErrAuthFailed indicates the provider rejected or omitted credentials.
	ErrAuthFailed = errors.New("payments: authentication with provider failed")
	// ErrProviderUnavailable indicates the provider could not be reached.
	ErrProviderUnavailable = errors.New("payments: provider unavailable")
	// ErrInvalidIntent indicates an unrecognised order intent.
	ErrInvalidIntent = errors.New("payments: invalid intent")
)
