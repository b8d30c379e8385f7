package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"dropship-gateway/internal/model"
)

func TestParseItem(t *testing.T) {
	tests := []struct {
		value   string
		want    model.CartItem
		wantErr bool
	}{
		{"P1:2:10.00", model.CartItem{ProductID: "P1", Quantity: 2, UnitPrice: decimal.RequireFromString("10")}, false},
		{"P1:V1:1:4.5", model.CartItem{ProductID: "P1", VariantID: "V1", Quantity: 1, UnitPrice: decimal.RequireFromString("4.5")}, false},
		{"P1::3:0", model.CartItem{ProductID: "P1", Quantity: 3, UnitPrice: decimal.Zero}, false},
		{"P1", model.CartItem{}, true},
		{":1:1", model.CartItem{}, true},
		{"P1:0:1", model.CartItem{}, true},
		{"P1:x:1", model.CartItem{}, true},
		{"P1:1:abc", model.CartItem{}, true},
		{"P1:1:-2", model.CartItem{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseItem(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseItem(%q) should fail", tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseItem(%q) error = %v", tt.value, err)
			}
			if got.ProductID != tt.want.ProductID || got.VariantID != tt.want.VariantID || got.Quantity != tt.want.Quantity {
				t.Errorf("parseItem(%q) = %+v, want %+v", tt.value, got, tt.want)
			}
			if !got.UnitPrice.Equal(tt.want.UnitPrice) {
				t.Errorf("UnitPrice = %s, want %s", got.UnitPrice, tt.want.UnitPrice)
			}
		})
	}
}

func TestItemListSet(t *testing.T) {
	var items itemList
	if err := items.Set("P1:1:2"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := items.Set("P2:V2:3:1.25"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if got := items.String(); got != "P1::1:2,P2:V2:3:1.25" {
		t.Errorf("String() = %q", got)
	}
}

func TestDoRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/shipping/check":
			w.Write([]byte(`{"shippable":true,"quotes":[{"carrier_name":"EPacket","transit_time":"7-12","freight":4.5,"currency":"USD"}]}`))
		case "/fail":
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"code":"RATE_LIMITED","message":"slow down"}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`upstream broke`))
		}
	}))
	defer server.Close()

	gatewayURL = server.URL

	var result model.ShippingResult
	if err := doRequest(http.MethodGet, "/shipping/check", nil, &result); err != nil {
		t.Fatalf("doRequest() error = %v", err)
	}
	cheapest, ok := result.Cheapest()
	if !ok || cheapest.CarrierName != "EPacket" || !cheapest.Freight.Equal(decimal.RequireFromString("4.5")) {
		t.Errorf("result = %+v", result)
	}

	err := doRequest(http.MethodGet, "/fail", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "RATE_LIMITED: slow down") {
		t.Errorf("doRequest(/fail) error = %v, want gateway error code", err)
	}

	err = doRequest(http.MethodGet, "/other", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "HTTP 502: upstream broke") {
		t.Errorf("doRequest(/other) error = %v, want raw body", err)
	}
}
