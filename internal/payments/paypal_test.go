package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPayPalCreateOrderCachesToken(t *testing.T) {
	t.Parallel()

	var tokenCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/oauth2/token":
			tokenCalls.Add(1)
			if user, pass, ok := r.BasicAuth(); !ok || user != "client" || pass != "secret" {
				t.Errorf("unexpected basic auth %q %q", user, pass)
			}
			if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
				t.Errorf("unexpected token form: %v", r.PostForm)
			}
			_, _ = w.Write([]byte(`{"access_token":"A21AA","expires_in":32400}`))
		case "/v2/checkout/orders":
			if r.Header.Get("Authorization") != "Bearer A21AA" {
				t.Errorf("unexpected authorization %q", r.Header.Get("Authorization"))
			}
			var body struct {
				Intent        string `json:"intent"`
				PurchaseUnits []struct {
					Amount struct {
						CurrencyCode string `json:"currency_code"`
						Value        string `json:"value"`
					} `json:"amount"`
				} `json:"purchase_units"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("failed to decode body: %v", err)
			}
			if body.Intent != "CAPTURE" || len(body.PurchaseUnits) != 1 || body.PurchaseUnits[0].Amount.Value != "25.50" || body.PurchaseUnits[0].Amount.CurrencyCode != "USD" {
				t.Errorf("unexpected order body: %+v", body)
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"5O190127TN364715T","status":"CREATED","links":[{"rel":"self","href":"https://example.test/self"},{"rel":"approve","href":"https://example.test/approve"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	gateway := NewPayPalGateway(PayPalConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		BaseURL:      server.URL,
		HTTPClient:   server.Client(),
	})

	req := OrderRequest{
		OrderID:     "order-1",
		Amount:      decimal.RequireFromString("25.5"),
		AmountMinor: 2550,
		Currency:    "usd",
		Receipt:     "ORD-260301-000001",
	}
	for i := 0; i < 2; i++ {
		order, err := gateway.CreateOrder(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.ID != "5O190127TN364715T" || order.ApproveURL != "https://example.test/approve" || order.Currency != "USD" {
			t.Fatalf("unexpected order: %+v", order)
		}
	}
	if tokenCalls.Load() != 1 {
		t.Fatalf("expected one token request, got %d", tokenCalls.Load())
	}
}

func TestPayPalTokenFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"Client Authentication failed"}`))
	}))
	defer server.Close()

	gateway := NewPayPalGateway(PayPalConfig{ClientID: "client", ClientSecret: "bad", BaseURL: server.URL, HTTPClient: server.Client()})
	_, err := gateway.CreateOrder(context.Background(), OrderRequest{Amount: decimal.NewFromInt(1), Currency: "USD"})
	gatewayErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %v", err)
	}
	if gatewayErr.StatusCode != http.StatusUnauthorized || gatewayErr.Message != "Client Authentication failed" {
		t.Fatalf("unexpected gateway error: %+v", gatewayErr)
	}
}
