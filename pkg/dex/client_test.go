package dex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexchain-labs/asset-gateway/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.DEXConfig{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		RequestTimeout: time.Second,
	}, zap.NewNop())
}

func TestNotConfigured(t *testing.T) {
	client := NewClient(&config.DEXConfig{}, zap.NewNop())

	if client.Configured() {
		t.Fatal("client with empty base URL should not report configured")
	}
	_, err := client.SpotPrice(context.Background(), "NCH", "USDT")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSpotPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/price/NCH/USDT" {
			t.Errorf("expected path /price/NCH/USDT, got %s", r.URL.Path)
		}
		if key := r.Header.Get("X-API-Key"); key != "test-key" {
			t.Errorf("expected API key header, got %q", key)
		}
		w.Write([]byte(`{"success": true, "spotPrice": "0.25"}`))
	})

	price, err := client.SpotPrice(context.Background(), "NCH", "USDT")
	if err != nil {
		t.Fatalf("SpotPrice failed: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("0.25")) {
		t.Fatalf("expected price 0.25, got %s", price)
	}
}

func TestSpotPrice_Failure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error": "unknown pair"}`))
	})

	_, err := client.SpotPrice(context.Background(), "NCH", "XYZ")
	if err == nil {
		t.Fatal("expected error for failed price lookup")
	}
	if !strings.Contains(err.Error(), "unknown pair") {
		t.Fatalf("expected service error text, got %v", err)
	}
}

func TestSwap(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/swap" {
			t.Errorf("expected POST /swap, got %s %s", r.Method, r.URL.Path)
		}

		var body SwapRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if body.TokenIn != "NCH" || body.TokenOut != "USDT" {
			t.Errorf("unexpected pair: %s -> %s", body.TokenIn, body.TokenOut)
		}
		if !body.MinAmountOut.Equal(decimal.RequireFromString("9.9")) {
			t.Errorf("expected minAmountOut 9.9, got %s", body.MinAmountOut)
		}

		json.NewEncoder(w).Encode(SwapResult{
			Success:   true,
			AmountOut: decimal.RequireFromString("9.95"),
			Fee:       decimal.RequireFromString("0.05"),
		})
	})

	result, err := client.Swap(context.Background(), &SwapRequest{
		TokenIn:      "NCH",
		TokenOut:     "USDT",
		AmountIn:     decimal.NewFromInt(10),
		MinAmountOut: decimal.RequireFromString("9.9"),
		UserAddress:  "nch1alice",
	})
	if err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	if !result.AmountOut.Equal(decimal.RequireFromString("9.95")) {
		t.Fatalf("expected amountOut 9.95, got %s", result.AmountOut)
	}
}

func TestRequestTransfer_Failure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transfer" {
			t.Errorf("expected path /transfer, got %s", r.URL.Path)
		}
		w.Write([]byte(`{"success": false, "error": "liquidity exhausted"}`))
	})

	_, err := client.RequestTransfer(context.Background(), &TransferRequest{
		Token:       "wNCH",
		Amount:      decimal.NewFromInt(100),
		Recipient:   "0x1111111111111111111111111111111111111111",
		TargetChain: "BSC",
	})
	if err == nil {
		t.Fatal("expected error for failed transfer request")
	}
	if !strings.Contains(err.Error(), "liquidity exhausted") {
		t.Fatalf("expected service error text, got %v", err)
	}
}

func TestHealth_Statuses(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr bool
	}{
		{"ok", "ok", false},
		{"healthy", "healthy", false},
		{"degraded", "degraded", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"status": tt.status})
			})

			err := client.Health(context.Background())
			if tt.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCall_AppliesRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Block until the client gives up.
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	client := NewClient(&config.DEXConfig{
		BaseURL:        srv.URL,
		RequestTimeout: 50 * time.Millisecond,
	}, zap.NewNop())

	_, err := client.QuoteAmountOut(context.Background(), "NCH", "USDT", decimal.NewFromInt(1))
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
