package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mintgate/api/internal/catalog"
	"github.com/mintgate/api/internal/mailer"
	"github.com/mintgate/api/internal/payments"
)

const defaultReceiptTimeout = 30 * time.Second

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid order parameters.
	ErrOrderInvalidInput = errors.New("orders: invalid input")
	// ErrOrderUnknownProduct indicates the order references a product without a price.
	ErrOrderUnknownProduct = errors.New("orders: unknown product")
	// ErrOrderCreationFailed indicates the provider rejected the order creation.
	ErrOrderCreationFailed = errors.New("orders: creation failed")
	// ErrOrderCompletionFailed indicates the provider call to finalise the order failed.
	ErrOrderCompletionFailed = errors.New("orders: completion failed")
	// ErrOrderClientTokenFailed indicates the provider could not issue a client token.
	ErrOrderClientTokenFailed = errors.New("orders: client token issuance failed")
	// ErrOrderAuthFailed indicates provider credentials were rejected.
	ErrOrderAuthFailed = errors.New("orders: provider authentication failed")
	// ErrOrderUnavailable indicates order dependencies are currently unavailable.
	ErrOrderUnavailable = errors.New("orders: unavailable")
)

// receiptSender abstracts mailer.ReceiptMailer for easier testing.
type receiptSender interface {
	SendReceipt(ctx context.Context, receipt mailer.Receipt) error
}

// CreateOrderCommand carries the fields for creating a provider order.
type CreateOrderCommand struct {
	Product string
	Intent  string
}

// CompleteOrderCommand carries the fields for finalising an approved order.
type CompleteOrderCommand struct {
	OrderID string
	Intent  string
	// Email is the receipt recipient supplied by the checkout page.
	Email string
}

// OrderService drives the order lifecycle against the payment provider.
type OrderService interface {
	// CreateOrder prices the product and registers an order with the provider.
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (payments.OrderResult, error)
	// CompleteOrder finalises an approved order and dispatches a receipt when
	// the provider confirms a transaction id.
	CompleteOrder(ctx context.Context, cmd CompleteOrderCommand) (payments.OrderResult, error)
	// ClientToken issues a browser-side provider token.
	ClientToken(ctx context.Context, customerID string) (string, error)
}

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Provider payments.Provider
	Store    catalog.Store
	Mailer   receiptSender
	Currency string
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
	// Dispatch runs receipt delivery off the request path. Defaults to a goroutine.
	Dispatch func(fn func())
	// ReceiptTimeout bounds the detached receipt delivery context.
	ReceiptTimeout time.Duration
}

type orderService struct {
	provider       payments.Provider
	store          catalog.Store
	mailer         receiptSender
	currency       string
	now            func() time.Time
	logger         func(ctx context.Context, event string, fields map[string]any)
	dispatch       func(fn func())
	receiptTimeout time.Duration
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Provider == nil {
		return nil, errors.New("order service: payment provider is required")
	}
	if deps.Store == nil {
		return nil, errors.New("order service: catalog store is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "USD"
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	dispatch := deps.Dispatch
	if dispatch == nil {
		dispatch = func(fn func()) { go fn() }
	}
	timeout := deps.ReceiptTimeout
	if timeout <= 0 {
		timeout = defaultReceiptTimeout
	}

	return &orderService{
		provider: deps.Provider,
		store:    deps.Store,
		mailer:   deps.Mailer,
		currency: currency,
		now: func() time.Time {
			return clock().UTC()
		},
		logger:         logger,
		dispatch:       dispatch,
		receiptTimeout: timeout,
	}, nil
}

// CreateOrder prices the product and registers the order with the provider.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (payments.OrderResult, error) {
	if s == nil || s.provider == nil || s.store == nil {
		return payments.OrderResult{}, ErrOrderUnavailable
	}

	product := strings.TrimSpace(cmd.Product)
	if product == "" {
		return payments.OrderResult{}, ErrOrderInvalidInput
	}

	intent, err := parseIntentWithDefault(cmd.Intent)
	if err != nil {
		return payments.OrderResult{}, ErrOrderInvalidInput
	}

	price, ok := s.store.Get(product)
	if !ok {
		return payments.OrderResult{}, ErrOrderUnknownProduct
	}

	result, err := s.provider.CreateOrder(ctx, payments.OrderRequest{
		Intent: intent,
		PurchaseUnits: []payments.PurchaseUnit{{
			Amount: payments.Amount{
				CurrencyCode: s.currency,
				Value:        price.Value,
			},
			Description: price.Description,
		}},
	})
	if err != nil {
		if errors.Is(err, payments.ErrAuthFailed) {
			return payments.OrderResult{}, errors.Join(ErrOrderAuthFailed, err)
		}
		return payments.OrderResult{}, errors.Join(ErrOrderCreationFailed, err)
	}

	s.logger(ctx, "orders.created", map[string]any{
		"order_id": result.ID,
		"product":  product,
		"intent":   string(intent),
	})
	return result, nil
}

// CompleteOrder finalises the order with the provider. When the provider's
// response carries a transaction id, a receipt email is dispatched off the
// request path; its failure never affects the response.
func (s *orderService) CompleteOrder(ctx context.Context, cmd CompleteOrderCommand) (payments.OrderResult, error) {
	if s == nil || s.provider == nil {
		return payments.OrderResult{}, ErrOrderUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return payments.OrderResult{}, ErrOrderInvalidInput
	}

	intent, err := parseIntentWithDefault(cmd.Intent)
	if err != nil {
		return payments.OrderResult{}, ErrOrderInvalidInput
	}

	result, err := s.provider.CompleteOrder(ctx, orderID, intent)
	if err != nil {
		if errors.Is(err, payments.ErrAuthFailed) {
			return payments.OrderResult{}, errors.Join(ErrOrderAuthFailed, err)
		}
		return payments.OrderResult{}, errors.Join(ErrOrderCompletionFailed, err)
	}

	if result.ID != "" && s.mailer != nil {
		s.dispatchReceipt(ctx, result.ID, strings.TrimSpace(cmd.Email))
	}

	s.logger(ctx, "orders.completed", map[string]any{
		"order_id": result.ID,
		"status":   result.Status,
		"intent":   string(intent),
	})
	return result, nil
}

// ClientToken issues a browser-side provider token.
func (s *orderService) ClientToken(ctx context.Context, customerID string) (string, error) {
	if s == nil || s.provider == nil {
		return "", ErrOrderUnavailable
	}

	token, err := s.provider.ClientToken(ctx, strings.TrimSpace(customerID))
	if err != nil {
		if errors.Is(err, payments.ErrAuthFailed) {
			return "", errors.Join(ErrOrderAuthFailed, err)
		}
		return "", errors.Join(ErrOrderClientTokenFailed, err)
	}
	return token, nil
}

func (s *orderService) dispatchReceipt(ctx context.Context, transactionID, email string) {
	dispatchID := ulid.MustNew(ulid.Timestamp(s.now()), ulid.DefaultEntropy()).String()
	detached := context.WithoutCancel(ctx)
	timeout := s.receiptTimeout

	s.dispatch(func() {
		sendCtx, cancel := context.WithTimeout(detached, timeout)
		defer cancel()

		if err := s.mailer.SendReceipt(sendCtx, mailer.Receipt{TransactionID: transactionID, ToAddress: email}); err != nil {
			s.logger(sendCtx, "orders.receipt_failed", map[string]any{
				"dispatch_id":    dispatchID,
				"transaction_id": transactionID,
				"error":          err.Error(),
			})
			return
		}
		s.logger(sendCtx, "orders.receipt_sent", map[string]any{
			"dispatch_id":    dispatchID,
			"transaction_id": transactionID,
		})
	})
}

func parseIntentWithDefault(value string) (payments.Intent, error) {
	if strings.TrimSpace(value) == "" {
		return payments.IntentCapture, nil
	}
	return payments.ParseIntent(value)
}
