package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AimalShah/BarterDash-sub000/internal/payment"
	"github.com/shopspring/decimal"
)

func mockProviderOK(id string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "status": "succeeded"})
	})
}

func mockProviderDeclined() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "card_declined", "message": "insufficient funds"},
		})
	})
}

func mockProviderDown() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
}

func TestClient_AuthorizeSuccess(t *testing.T) {
	srv := httptest.NewServer(mockProviderOK("hold_123"))
	defer srv.Close()

	c := payment.NewClient(srv.URL, "sk_test", 3*time.Second)
	ref, err := c.Authorize(context.Background(), "cus_1", decimal.NewFromInt(101), "USD")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if ref != "hold_123" {
		t.Errorf("holdRef = %q, want hold_123", ref)
	}
}

// A decline carries the provider's code and must not be retried.
func TestClient_DeclinedIsTerminal(t *testing.T) {
	srv := httptest.NewServer(mockProviderDeclined())
	defer srv.Close()

	c := payment.NewClient(srv.URL, "sk_test", 3*time.Second)
	_, err := c.Authorize(context.Background(), "cus_1", decimal.NewFromInt(101), "USD")
	if err == nil {
		t.Fatal("expected decline error")
	}
	if payment.IsRetryable(err) {
		t.Error("declines must be terminal")
	}
	var pe *payment.Error
	if !errors.As(err, &pe) || pe.Code != "card_declined" {
		t.Errorf("err = %v, want code card_declined", err)
	}
}

// Provider 5xx leaves the funds where they were and may be reattempted.
func TestClient_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(mockProviderDown())
	defer srv.Close()

	c := payment.NewClient(srv.URL, "sk_test", 3*time.Second)
	err := c.Capture(context.Background(), "hold_123")
	if err == nil {
		t.Fatal("expected provider error")
	}
	if !payment.IsRetryable(err) {
		t.Error("5xx should be retryable")
	}
}

// A hung provider should fail by client timeout, classified retryable.
func TestClient_TimeoutIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := payment.NewClient(srv.URL, "sk_test", 50*time.Millisecond)
	_, err := c.Transfer(context.Background(), "acct_1", decimal.NewFromInt(95), "USD")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !payment.IsRetryable(err) {
		t.Error("timeouts should be retryable")
	}
}

func TestClient_RefundReturnsReference(t *testing.T) {
	srv := httptest.NewServer(mockProviderOK("re_77"))
	defer srv.Close()

	c := payment.NewClient(srv.URL, "sk_test", 3*time.Second)
	ref, err := c.Refund(context.Background(), "hold_123", decimal.RequireFromString("101.00"))
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if ref != "re_77" {
		t.Errorf("refundRef = %q, want re_77", ref)
	}
}
