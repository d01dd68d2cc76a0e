package payments

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestProvider(t *testing.T, handler http.Handler) (*PayPalProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewPayPalProvider(PayPalProviderConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		BaseURL:      server.URL,
	})
	if err != nil {
		t.Fatalf("NewPayPalProvider: %v", err)
	}
	return provider, server
}

func tokenHandler(t *testing.T, token string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/oauth2/token" {
			t.Errorf("unexpected token path %s", r.URL.Path)
		}
		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("test-client:test-secret"))
		if got := r.Header.Get("Authorization"); got != wantAuth {
			t.Errorf("unexpected Authorization header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "grant_type=client_credentials") {
			t.Errorf("unexpected token request body %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   32400,
		})
	}
}

func TestParseIntent(t *testing.T) {
	cases := []struct {
		input   string
		want    Intent
		wantErr bool
	}{
		{"capture", IntentCapture, false},
		{"CAPTURE", IntentCapture, false},
		{" Authorize ", IntentAuthorize, false},
		{"", "", true},
		{"refund", "", true},
	}
	for _, tc := range cases {
		got, err := ParseIntent(tc.input)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidIntent) {
				t.Errorf("ParseIntent(%q): expected ErrInvalidIntent, got %v", tc.input, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseIntent(%q) = %q, %v; want %q", tc.input, got, err, tc.want)
		}
	}
}

func TestNewPayPalProviderRequiresCredentials(t *testing.T) {
	if _, err := NewPayPalProvider(PayPalProviderConfig{ClientID: "only-id"}); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, err := NewPayPalProvider(PayPalProviderConfig{ClientSecret: "only-secret"}); err == nil {
		t.Fatal("expected error for missing client id")
	}
}

func TestNewPayPalProviderEnvironmentSelection(t *testing.T) {
	sandbox, err := NewPayPalProvider(PayPalProviderConfig{ClientID: "a", ClientSecret: "b", Environment: "sandbox"})
	if err != nil {
		t.Fatalf("NewPayPalProvider: %v", err)
	}
	if sandbox.baseURL != paypalSandboxBaseURL {
		t.Fatalf("unexpected sandbox base url %q", sandbox.baseURL)
	}

	live, err := NewPayPalProvider(PayPalProviderConfig{ClientID: "a", ClientSecret: "b", Environment: "production"})
	if err != nil {
		t.Fatalf("NewPayPalProvider: %v", err)
	}
	if live.baseURL != paypalLiveBaseURL {
		t.Fatalf("unexpected live base url %q", live.baseURL)
	}
}

func TestAccessToken(t *testing.T) {
	provider, _ := newTestProvider(t, tokenHandler(t, "token-123"))

	token, err := provider.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "token-123" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestAccessTokenMissingFromResponse(t *testing.T) {
	provider, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))

	_, err := provider.AccessToken(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestAccessTokenTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	provider, err := NewPayPalProvider(PayPalProviderConfig{
		ClientID:     "a",
		ClientSecret: "b",
		BaseURL:      server.URL,
	})
	if err != nil {
		t.Fatalf("NewPayPalProvider: %v", err)
	}

	_, err = provider.AccessToken(context.Background())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestCreateOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler(t, "token-abc"))
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-abc" {
			t.Errorf("unexpected bearer header %q", got)
		}
		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding order request: %v", err)
		}
		if req.Intent != IntentCapture {
			t.Errorf("unexpected intent %q", req.Intent)
		}
		if len(req.PurchaseUnits) != 1 || req.PurchaseUnits[0].Amount.Value != "5500.00" {
			t.Errorf("unexpected purchase units %+v", req.PurchaseUnits)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ORDER-1","status":"CREATED","links":[]}`))
	})

	provider, _ := newTestProvider(t, mux)

	result, err := provider.CreateOrder(context.Background(), OrderRequest{
		Intent: IntentCapture,
		PurchaseUnits: []PurchaseUnit{{
			Amount:      Amount{CurrencyCode: "USD", Value: "5500.00"},
			Description: "Premium NFT Collection",
		}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if result.ID != "ORDER-1" || result.Status != "CREATED" {
		t.Fatalf("unexpected result %+v", result)
	}
	if !strings.Contains(string(result.Raw), `"links":[]`) {
		t.Fatalf("expected verbatim raw body, got %s", result.Raw)
	}
}

func TestCompleteOrderPathAndPassthrough(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler(t, "token-abc"))
	mux.HandleFunc("/v2/checkout/orders/ORDER-9/capture", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_NOT_APPROVED"}]}`))
	})

	provider, _ := newTestProvider(t, mux)

	result, err := provider.CompleteOrder(context.Background(), "ORDER-9", IntentCapture)
	if err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
	if result.ID != "" {
		t.Fatalf("expected no id on provider error body, got %q", result.ID)
	}
	if !strings.Contains(string(result.Raw), "ORDER_NOT_APPROVED") {
		t.Fatalf("expected provider error forwarded verbatim, got %s", result.Raw)
	}
}

func TestCompleteOrderAuthorizeIntent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler(t, "token-abc"))
	mux.HandleFunc("/v2/checkout/orders/ORDER-2/authorize", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ORDER-2","status":"COMPLETED"}`))
	})

	provider, _ := newTestProvider(t, mux)

	result, err := provider.CompleteOrder(context.Background(), "ORDER-2", IntentAuthorize)
	if err != nil {
		t.Fatalf("CompleteOrder: %v", err)
	}
	if result.ID != "ORDER-2" || result.Status != "COMPLETED" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestCompleteOrderRequiresID(t *testing.T) {
	provider, _ := newTestProvider(t, http.NotFoundHandler())
	if _, err := provider.CompleteOrder(context.Background(), "  ", IntentCapture); err == nil {
		t.Fatal("expected error for empty order id")
	}
}

func TestClientToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler(t, "token-abc"))
	mux.HandleFunc("/v1/identity/generate-token", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"customer_id":"cust-1"`) {
			t.Errorf("expected customer id in request body, got %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"client_token":"ct-456","expires_in":3600}`))
	})

	provider, _ := newTestProvider(t, mux)

	token, err := provider.ClientToken(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("ClientToken: %v", err)
	}
	if token != "ct-456" {
		t.Fatalf("unexpected client token %q", token)
	}
}

func TestClientTokenOmitsEmptyCustomer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler(t, "token-abc"))
	mux.HandleFunc("/v1/identity/generate-token", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if len(body) != 0 {
			t.Errorf("expected empty body, got %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"client_token":"ct-anon"}`))
	})

	provider, _ := newTestProvider(t, mux)

	token, err := provider.ClientToken(context.Background(), "")
	if err != nil {
		t.Fatalf("ClientToken: %v", err)
	}
	if token != "ct-anon" {
		t.Fatalf("unexpected client token %q", token)
	}
}

func TestClientTokenMissingFromResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", tokenHandler(t, "token-abc"))
	mux.HandleFunc("/v1/identity/generate-token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden"}`))
	})

	provider, _ := newTestProvider(t, mux)

	if _, err := provider.ClientToken(context.Background(), ""); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}
