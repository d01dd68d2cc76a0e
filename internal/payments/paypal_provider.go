package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	paypalSandboxBaseURL = "https://api-m.sandbox.paypal.com"
	paypalLiveBaseURL    = "https://api-m.paypal.com"

	// EnvironmentSandbox selects PayPal's sandbox endpoints.
	EnvironmentSandbox = "sandbox"
	// EnvironmentProduction selects PayPal's live endpoints.
	EnvironmentProduction = "production"
)

const maxProviderResponseBytes = 1 << 20

// PayPalLogger defines the logging contract for PayPal provider operations.
type PayPalLogger func(ctx context.Context, event string, fields map[string]any)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PayPalProviderConfig configures the PayPalProvider.
type PayPalProviderConfig struct {
	ClientID     string
	ClientSecret string
	Environment  string
	// BaseURL overrides the environment-derived endpoint, mainly for tests.
	BaseURL    string
	HTTPClient httpDoer
	Logger     PayPalLogger
	Clock      func() time.Time
}

// PayPalProvider implements the Provider interface against PayPal's REST APIs.
type PayPalProvider struct {
	clientID     string
	clientSecret string
	baseURL      string
	http         httpDoer
	logger       PayPalLogger
	clock        func() time.Time
}

// NewPayPalProvider constructs a PayPal Provider using the given configuration.
func NewPayPalProvider(cfg PayPalProviderConfig) (*PayPalProvider, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("paypal: client credentials are required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		switch strings.ToLower(strings.TrimSpace(cfg.Environment)) {
		case EnvironmentSandbox, "":
			baseURL = paypalSandboxBaseURL
		default:
			baseURL = paypalLiveBaseURL
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &PayPalProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      baseURL,
		http:         httpClient,
		logger:       logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// AccessToken exchanges the client credentials for a fresh OAuth access token.
// Tokens are not cached; every call performs the exchange.
func (p *PayPalProvider) AccessToken(ctx context.Context) (string, error) {
	if p == nil {
		return "", errors.New("paypal: provider is nil")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("paypal: building token request: %w", err)
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	started := p.clock()
	resp, err := p.http.Do(req)
	if err != nil {
		p.logger(ctx, "paypal.token.transport_error", map[string]any{"error": err.Error()})
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return "", fmt.Errorf("paypal: reading token response: %w", err)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
		p.logger(ctx, "paypal.token.auth_failed", map[string]any{
			"status":  resp.StatusCode,
			"latency": p.clock().Sub(started).String(),
		})
		return "", ErrAuthFailed
	}

	p.logger(ctx, "paypal.token.issued", map[string]any{
		"status":     resp.StatusCode,
		"expires_in": payload.ExpiresIn,
		"latency":    p.clock().Sub(started).String(),
	})
	return payload.AccessToken, nil
}

// CreateOrder registers a new order and returns the provider response verbatim.
func (p *PayPalProvider) CreateOrder(ctx context.Context, orderReq OrderRequest) (OrderResult, error) {
	if p == nil {
		return OrderResult{}, errors.New("paypal: provider is nil")
	}

	token, err := p.AccessToken(ctx)
	if err != nil {
		return OrderResult{}, err
	}

	payload, err := json.Marshal(orderReq)
	if err != nil {
		return OrderResult{}, fmt.Errorf("paypal: encoding order request: %w", err)
	}

	result, status, err := p.postJSON(ctx, "/v2/checkout/orders", token, payload)
	if err != nil {
		return OrderResult{}, err
	}

	p.logger(ctx, "paypal.order.created", map[string]any{
		"status":   status,
		"order_id": result.ID,
		"intent":   string(orderReq.Intent),
	})
	return result, nil
}

// CompleteOrder captures or authorises an approved order. The provider's
// response body is returned verbatim regardless of its status code so that
// callers can forward approval errors to the client unchanged.
func (p *PayPalProvider) CompleteOrder(ctx context.Context, orderID string, intent Intent) (OrderResult, error) {
	if p == nil {
		return OrderResult{}, errors.New("paypal: provider is nil")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return OrderResult{}, errors.New("paypal: order id is required")
	}

	token, err := p.AccessToken(ctx)
	if err != nil {
		return OrderResult{}, err
	}

	path := fmt.Sprintf("/v2/checkout/orders/%s/%s", url.PathEscape(orderID), intent.Path())
	result, status, err := p.postJSON(ctx, path, token, nil)
	if err != nil {
		return OrderResult{}, err
	}

	p.logger(ctx, "paypal.order.completed", map[string]any{
		"status":   status,
		"order_id": result.ID,
		"intent":   string(intent),
	})
	return result, nil
}

// ClientToken issues a browser-side token for rendering hosted card fields.
func (p *PayPalProvider) ClientToken(ctx context.Context, customerID string) (string, error) {
	if p == nil {
		return "", errors.New("paypal: provider is nil")
	}

	token, err := p.AccessToken(ctx)
	if err != nil {
		return "", err
	}

	var payload []byte
	if customerID = strings.TrimSpace(customerID); customerID != "" {
		payload, err = json.Marshal(map[string]string{"customer_id": customerID})
		if err != nil {
			return "", fmt.Errorf("paypal: encoding client token request: %w", err)
		}
	}

	result, status, err := p.postJSON(ctx, "/v1/identity/generate-token", token, payload)
	if err != nil {
		return "", err
	}

	var decoded struct {
		ClientToken string `json:"client_token"`
	}
	if err := json.Unmarshal(result.Raw, &decoded); err != nil || decoded.ClientToken == "" {
		p.logger(ctx, "paypal.client_token.missing", map[string]any{"status": status})
		return "", fmt.Errorf("%w: client token missing from response", ErrAuthFailed)
	}

	p.logger(ctx, "paypal.client_token.issued", map[string]any{"status": status})
	return decoded.ClientToken, nil
}

func (p *PayPalProvider) postJSON(ctx context.Context, path, bearer string, payload []byte) (OrderResult, int, error) {
	var body io.Reader
	if len(payload) > 0 {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, body)
	if err != nil {
		return OrderResult{}, 0, fmt.Errorf("paypal: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		p.logger(ctx, "paypal.request.transport_error", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return OrderResult{}, 0, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return OrderResult{}, resp.StatusCode, fmt.Errorf("paypal: reading response: %w", err)
	}

	var envelope struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	// Best effort; non-JSON bodies still flow through Raw untouched.
	_ = json.Unmarshal(raw, &envelope)

	return OrderResult{
		ID:     envelope.ID,
		Status: envelope.Status,
		Raw:    json.RawMessage(raw),
	}, resp.StatusCode, nil
}
