package vest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voltrade/revbot/internal/crypto"
	"github.com/voltrade/revbot/internal/domain"
)

const testSigningKey = "4c0883a69102937d6231471b5dbb6204fe512961708279f2e3e8a5d4b8e3e3e8"

func testSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.NewSigner(testSigningKey, 1)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestX18RoundTrip(t *testing.T) {
	if got := toX18(50000); got != "50000000000000000000000" {
		t.Errorf("toX18(50000) = %s", got)
	}
	v, err := fromX18("49600000000000000000000")
	if err != nil {
		t.Fatal(err)
	}
	if v != 49600 {
		t.Errorf("fromX18 = %v, want 49600", v)
	}
	if _, err := fromX18("not-a-number"); err == nil {
		t.Error("fromX18 accepted garbage")
	}
	if _, err := fromX18(""); err == nil {
		t.Error("fromX18 accepted empty string")
	}
}

func TestGetBalancePicksSettlementAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(apiAccount{Balances: []apiBalance{
			{Asset: "ETH", Available: "2000000000000000000", Total: "2000000000000000000"},
			{Asset: "USDC", Available: "1000000000000000000000", Total: "1500000000000000000000"},
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "USDC", testSigner(t))
	bal, err := c.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal.Available != 1000 {
		t.Errorf("available = %v, want 1000", bal.Available)
	}
}

func TestSubmitOrderSignsAndDecodes(t *testing.T) {
	var received apiOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(apiOrderResponse{OrderID: "ord-42", Status: "NEW"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "USDC", testSigner(t))
	res, err := c.SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol:   "BTC-PERP",
		Side:     domain.OrderSideSell,
		Price:    49900,
		Size:     500,
		ClientID: "cli-1",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Accepted == nil || res.Accepted.OrderID != "ord-42" {
		t.Errorf("result = %+v, want accepted ord-42", res)
	}
	if received.Side != "SELL" || received.Type != "LIMIT" {
		t.Errorf("wire order = %+v", received)
	}
	if received.Price != "49900000000000000000000" {
		t.Errorf("wire price = %s", received.Price)
	}
	if received.Signature == "" {
		t.Error("order sent unsigned")
	}
}

func TestSubmitOrderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiOrderResponse{Status: "REJECTED", Reason: "margin check failed"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "USDC", testSigner(t))
	res, err := c.SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol: "BTC-PERP", Side: domain.OrderSideBuy, Price: 50000, Size: 100,
	})
	// Rejection is an outcome, not an error.
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Rejected == nil || res.Rejected.Reason != "margin check failed" {
		t.Errorf("result = %+v, want rejection", res)
	}
}

func TestOrderStatusMapping(t *testing.T) {
	cases := []struct {
		api  string
		want domain.OrderState
	}{
		{"NEW", domain.OrderStateNew},
		{"PARTIALLY_FILLED", domain.OrderStateNew},
		{"FILLED", domain.OrderStateFilled},
		{"CANCELLED", domain.OrderStateCancelled},
		{"EXPIRED", domain.OrderStateCancelled},
		{"REJECTED", domain.OrderStateRejected},
		{"weird", domain.OrderStateUnknown},
	}
	for _, tc := range cases {
		got := apiOrderResponse{OrderID: "o", Status: tc.api}.toStatusInfo()
		if got.State != tc.want {
			t.Errorf("status %s -> %s, want %s", tc.api, got.State, tc.want)
		}
	}
}

func TestHTTPStatusMapsToDomainErrors(t *testing.T) {
	body := []byte(`{"code":9,"message":"nope"}`)
	if err := checkHTTPStatus(http.StatusTooManyRequests, body); !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("429 -> %v", err)
	}
	if err := checkHTTPStatus(http.StatusUnauthorized, body); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("401 -> %v", err)
	}
	if err := checkHTTPStatus(http.StatusBadRequest, body); !errors.Is(err, domain.ErrOrderRejected) {
		t.Errorf("400 -> %v", err)
	}
	if err := checkHTTPStatus(http.StatusOK, nil); err != nil {
		t.Errorf("200 -> %v", err)
	}
}

func TestOrderUpdateToFillEvent(t *testing.T) {
	ev, err := wsOrderUpdate{
		Channel: "orders", OrderID: "tp-1", Status: "FILLED",
		FillPrice: "49600000000000000000000", Timestamp: 1700000000000,
	}.toFillEvent()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Filled == nil || ev.Filled.Price != 49600 {
		t.Errorf("event = %+v, want fill at 49600", ev)
	}

	ev, err = wsOrderUpdate{Channel: "orders", OrderID: "sl-1", Status: "CANCELLED"}.toFillEvent()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Cancelled == nil || ev.Cancelled.OrderID != "sl-1" {
		t.Errorf("event = %+v, want cancellation", ev)
	}

	ev, err = wsOrderUpdate{Channel: "orders", OrderID: "o", Status: "NEW"}.toFillEvent()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Filled != nil || ev.Cancelled != nil {
		t.Errorf("intermediate state produced event: %+v", ev)
	}
}
