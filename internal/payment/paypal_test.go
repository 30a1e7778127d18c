package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const capturedOrder = `{
  "id": "ORDER-1",
  "status": "COMPLETED",
  "purchase_units": [{
    "payments": {"captures": [{
      "id": "CAP-9",
      "status": "COMPLETED",
      "amount": {"currency_code": "usd", "value": "25.50"}
    }]}
  }]
}`

func newPayPalServer(t *testing.T, capture http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/checkout/orders/", capture)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func TestPayPalClient_Capture(t *testing.T) {
	srv, tokenCalls := newPayPalServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/checkout/orders/ORDER-1/capture" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("missing bearer token")
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(capturedOrder))
	})

	c := NewPayPalClient(srv.URL, "client", "secret", nil)
	for i := 0; i < 2; i++ {
		res, err := c.Capture(context.Background(), "ORDER-1")
		if err != nil {
			t.Fatalf("capture: %v", err)
		}
		if !res.Completed || res.TransactionID != "CAP-9" || res.Amount != 2550 || res.Currency != "USD" {
			t.Fatalf("unexpected capture %+v", res)
		}
	}
	if atomic.LoadInt32(tokenCalls) != 1 {
		t.Fatalf("expected access token to be cached, got %d token calls", *tokenCalls)
	}
}

func TestPayPalClient_AlreadyCapturedFetchesOrder(t *testing.T) {
	srv, _ := newPayPalServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`))
			return
		}
		_, _ = w.Write([]byte(capturedOrder))
	})

	res, err := NewPayPalClient(srv.URL, "client", "secret", nil).Capture(context.Background(), "ORDER-1")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !res.Completed || res.TransactionID != "CAP-9" {
		t.Fatalf("unexpected capture %+v", res)
	}
}

func TestPayPalClient_Errors(t *testing.T) {
	srv, _ := newPayPalServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/checkout/orders/MISSING/capture" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := NewPayPalClient(srv.URL, "client", "secret", nil)

	if _, err := c.Capture(context.Background(), "MISSING"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected order not found, got %v", err)
	}
	if _, err := c.Capture(context.Background(), "BROKEN"); err == nil {
		t.Fatalf("expected error on 500")
	}
	if _, err := c.Capture(context.Background(), " "); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected empty order id to be rejected")
	}

	bad := NewPayPalClient(srv.URL, "client", "wrong", nil)
	if _, err := bad.Capture(context.Background(), "ORDER-1"); err == nil {
		t.Fatalf("expected token error")
	}
}

func TestParseMinorUnits(t *testing.T) {
	tests := map[string]int64{"25": 2500, "25.5": 2550, "25.50": 2550, "0.07": 7}
	for in, want := range tests {
		got, err := ParseMinorUnits(in)
		if err != nil || got != want {
			t.Fatalf("ParseMinorUnits(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"", "1.234", "abc"} {
		if _, err := ParseMinorUnits(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}
