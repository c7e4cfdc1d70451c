package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateOrder(t *testing.T) {
	t.Run("successful creation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/orders" || r.Method != http.MethodPost {
				t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			user, pass, ok := r.BasicAuth()
			if !ok || user != "key_id" || pass != "key_secret" {
				t.Error("basic auth credentials missing or wrong")
			}
			var req CreateOrderRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			if req.Amount != 500000 || req.Currency != "INR" {
				t.Errorf("unexpected order body: %+v", req)
			}
			json.NewEncoder(w).Encode(Order{
				ID:       "order_test_1",
				Entity:   "order",
				Amount:   req.Amount,
				Currency: req.Currency,
				Receipt:  req.Receipt,
				Status:   "created",
			})
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "key_id", "key_secret", 5*time.Second)
		order, err := client.CreateOrder(context.Background(), CreateOrderRequest{
			Amount:   500000,
			Currency: "INR",
			Receipt:  "rcpt_1",
		})
		if err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		if order.ID != "order_test_1" || order.Status != "created" {
			t.Errorf("unexpected order: %+v", order)
		}
	})

	t.Run("gateway rejection is a definite error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"Currency is not supported"}}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "key_id", "key_secret", 5*time.Second)
		_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 100, Currency: "XXX"})
		if err == nil {
			t.Fatal("expected an error")
		}
		if errors.Is(err, ErrIndeterminate) {
			t.Error("a definite rejection must not be indeterminate")
		}
	})

	t.Run("transport failure is indeterminate", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // connections now refused

		client := NewClient(srv.URL, "key_id", "key_secret", 2*time.Second)
		_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 100, Currency: "INR"})
		if err == nil {
			t.Fatal("expected an error")
		}
		if !errors.Is(err, ErrIndeterminate) {
			t.Errorf("transport failures must be indeterminate, got %v", err)
		}
	})

	t.Run("timeout is indeterminate", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "key_id", "key_secret", 50*time.Millisecond)
		_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 100, Currency: "INR"})
		if err == nil {
			t.Fatal("expected an error")
		}
		if !errors.Is(err, ErrIndeterminate) {
			t.Errorf("timeouts must be indeterminate, got %v", err)
		}
	})

	t.Run("response without order id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"entity":"order"}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, "key_id", "key_secret", 5*time.Second)
		_, err := client.CreateOrder(context.Background(), CreateOrderRequest{Amount: 100, Currency: "INR"})
		if err == nil {
			t.Fatal("expected an error for a response without an order id")
		}
	})
}

func TestGetOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders/order_test_1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Order{ID: "order_test_1", Status: "paid", Amount: 500000})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key_id", "key_secret", 5*time.Second)
	order, err := client.GetOrder(context.Background(), "order_test_1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Status != "paid" {
		t.Errorf("unexpected order status: %q", order.Status)
	}
}
