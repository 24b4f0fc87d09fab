package cardpay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumen-shop/internal/payment"
)

func testChargeInput() payment.ChargeInput {
	return payment.ChargeInput{
		AmountMinor: 11998,
		Currency:    "USD",
		Reference:   "cart-1",
		Card: payment.Card{
			HolderName:  "Test Buyer",
			Number:      "4242424242424242",
			ExpiryMonth: "12",
			ExpiryYear:  "2099",
			CVV:         "123",
		},
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{Endpoint: "", APIKey: "sk"}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid for empty endpoint, got %v", err)
	}
	if _, err := New(Config{Endpoint: "https://pay.example.com", APIKey: ""}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid for empty api key, got %v", err)
	}
	if _, err := New(Config{Endpoint: "https://pay.example.com", APIKey: "sk"}); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestChargeSuccess(t *testing.T) {
	var gotAuth, gotAmount, gotCurrency string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/charges" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form failed: %v", err)
		}
		gotAuth = r.Header.Get("Authorization")
		gotAmount = r.PostFormValue("amount")
		gotCurrency = r.PostFormValue("currency")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ch_123","status":"succeeded","receipt_url":"https://pay.example.com/r/ch_123","customer_id":"cus_9"}`))
	}))
	defer server.Close()

	client, err := New(Config{Endpoint: server.URL, APIKey: "sk_test", Timeout: time.Second})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	result, err := client.Charge(context.Background(), testChargeInput())
	if err != nil {
		t.Fatalf("charge failed: %v", err)
	}
	if result.ChargeID != "ch_123" {
		t.Fatalf("unexpected charge id: %s", result.ChargeID)
	}
	if result.Status != payment.ChargeStatusSucceeded {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if gotAuth != "Bearer sk_test" {
		t.Fatalf("unexpected auth header: %s", gotAuth)
	}
	if gotAmount != "11998" || gotCurrency != "usd" {
		t.Fatalf("unexpected form values: amount=%s currency=%s", gotAmount, gotCurrency)
	}
}

func TestChargeDeclined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"message":"insufficient funds"}`))
	}))
	defer server.Close()

	client, err := New(Config{Endpoint: server.URL, APIKey: "sk_test"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	_, err = client.Charge(context.Background(), testChargeInput())
	if !errors.Is(err, ErrChargeDeclined) {
		t.Fatalf("expected ErrChargeDeclined, got %v", err)
	}
}

func TestChargeInvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client, err := New(Config{Endpoint: server.URL, APIKey: "sk_test"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	_, err = client.Charge(context.Background(), testChargeInput())
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected ErrResponseInvalid, got %v", err)
	}
}

func TestChargeRejectsInvalidCardLocally(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer server.Close()

	client, err := New(Config{Endpoint: server.URL, APIKey: "sk_test"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	input := testChargeInput()
	input.Card.Number = "1234"
	if _, err := client.Charge(context.Background(), input); !errors.Is(err, payment.ErrCardNumberInvalid) {
		t.Fatalf("expected ErrCardNumberInvalid, got %v", err)
	}
	if called {
		t.Fatalf("gateway must not be called for invalid card")
	}
}
