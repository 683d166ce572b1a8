package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexchain-labs/asset-gateway/pkg/ledger"
	"github.com/nexchain-labs/asset-gateway/pkg/records"
	"github.com/nexchain-labs/asset-gateway/pkg/store"
)

func newBridgeTestServer(engine *Engine) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, engine, zap.NewNop())
	return r
}

func decodeError(t *testing.T, body []byte) (string, int) {
	t.Helper()
	var got struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("failed to decode response JSON: %v", err)
	}
	return got.Error, got.Code
}

func TestBridgeHTTP_InvalidJSON(t *testing.T) {
	handler := newBridgeTestServer(newTestEngine(nil, nil, nil, nil, nil))

	req := httptest.NewRequest(http.MethodPost, "/bridge/out", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if msg, _ := decodeError(t, rec.Body.Bytes()); msg != "invalid JSON" {
		t.Fatalf("expected error %q, got %q", "invalid JSON", msg)
	}
}

func TestBridgeHTTP_OutSuccess(t *testing.T) {
	ledgerMock := &MockLedger{
		BalanceFunc: func(ctx context.Context, address string) (decimal.Decimal, error) {
			return decimal.NewFromInt(100), nil
		},
	}
	handler := newBridgeTestServer(newTestEngine(nil, ledgerMock, nil, nil, nil))

	body := `{"amount":15,"toChain":"BSC","recipient":"` + testRecipient + `","fromAddress":"nch1alice","signingKey":"alice-key"}`
	req := httptest.NewRequest(http.MethodPost, "/bridge/out", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var got OutResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !got.Record.NetAmount.Equal(decimal.RequireFromString("14.925")) {
		t.Errorf("net amount = %s, want 14.925", got.Record.NetAmount)
	}
	if !got.Record.Fee.Equal(decimal.RequireFromString("0.075")) {
		t.Errorf("fee = %s, want 0.075", got.Record.Fee)
	}
	if got.Warning == "" {
		t.Error("expected a deployment warning for the lock-only chain")
	}
}

func TestBridgeHTTP_OutBelowMinimum(t *testing.T) {
	handler := newBridgeTestServer(newTestEngine(nil, nil, nil, nil, nil))

	body := `{"amount":5,"toChain":"BSC","recipient":"` + testRecipient + `","fromAddress":"nch1alice","signingKey":"alice-key"}`
	req := httptest.NewRequest(http.MethodPost, "/bridge/out", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestBridgeHTTP_InSuccess(t *testing.T) {
	handler := newBridgeTestServer(newTestEngine(nil, nil, nil, nil, nil))

	body := `{"amount":50,"fromChain":"BSC","sourceTransactionHash":"0xdeadbeef","recipient":"nch1alice"}`
	req := httptest.NewRequest(http.MethodPost, "/bridge/in", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var got InResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.MintTransactionHash != "mock-mint-tx" {
		t.Errorf("mint tx hash = %q, want mock-mint-tx", got.MintTransactionHash)
	}
	if got.Record.Status != records.BridgeCompleted {
		t.Errorf("record status = %q, want completed", got.Record.Status)
	}
}

func TestBridgeHTTP_InVerificationFailed(t *testing.T) {
	ledgerMock := &MockLedger{
		VerifyFunc: func(ctx context.Context, req *ledger.VerifyRequest) (*ledger.Verification, error) {
			return &ledger.Verification{Verified: false}, nil
		},
	}
	handler := newBridgeTestServer(newTestEngine(nil, ledgerMock, nil, nil, nil))

	body := `{"amount":50,"fromChain":"BSC","sourceTransactionHash":"0xdeadbeef","recipient":"nch1alice"}`
	req := httptest.NewRequest(http.MethodPost, "/bridge/in", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, rec.Code)
	}
	if msg, _ := decodeError(t, rec.Body.Bytes()); msg != ErrVerificationFailed.Error() {
		t.Fatalf("unexpected error message %q", msg)
	}
}

func TestBridgeHTTP_InAlreadyProcessed(t *testing.T) {
	bridges := &MockBridgeStore{
		ClaimBridgeInFunc: func(ctx context.Context, rec *records.BridgeRecord) error {
			return store.ErrHashCompleted
		},
	}
	handler := newBridgeTestServer(newTestEngine(nil, nil, nil, bridges, nil))

	body := `{"amount":50,"fromChain":"BSC","sourceTransactionHash":"0xdeadbeef","recipient":"nch1alice"}`
	req := httptest.NewRequest(http.MethodPost, "/bridge/in", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestBridgeHTTP_Status(t *testing.T) {
	bridges := &MockBridgeStore{
		ByHashFunc: func(ctx context.Context, txHash string) (*records.BridgeRecord, error) {
			if txHash != "0xabc" {
				t.Errorf("looked up %q, want 0xabc", txHash)
			}
			return &records.BridgeRecord{ID: "rec-1", Status: records.BridgeCompleted}, nil
		},
	}
	handler := newBridgeTestServer(newTestEngine(nil, nil, nil, bridges, nil))

	req := httptest.NewRequest(http.MethodGet, "/bridge/status/0xabc", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var got StatusResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Status != "completed" {
		t.Errorf("status = %q, want completed", got.Status)
	}
}

func TestBridgeHTTP_History(t *testing.T) {
	bridges := &MockBridgeStore{
		ListBridgeRecordsFunc: func(ctx context.Context, opts ...store.QueryOption) ([]*records.BridgeRecord, error) {
			return []*records.BridgeRecord{
				{ID: "rec-2", Direction: records.DirectionIn},
				{ID: "rec-1", Direction: records.DirectionOut},
			}, nil
		},
	}
	handler := newBridgeTestServer(newTestEngine(nil, nil, nil, bridges, nil))

	req := httptest.NewRequest(http.MethodGet, "/bridge/history", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var got struct {
		History []*records.BridgeRecord `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got.History) != 2 || got.History[0].ID != "rec-2" {
		t.Errorf("history = %+v, want rec-2 first", got.History)
	}
}

func TestBridgeHTTP_Stats(t *testing.T) {
	bridges := &MockBridgeStore{
		BridgeStatsFunc: func(ctx context.Context) (*records.BridgeStats, error) {
			return &records.BridgeStats{
				TotalBridges: 2,
				TotalBridged: decimal.NewFromInt(150),
				TotalFees:    decimal.RequireFromString("0.75"),
				ByDirection:  map[string]int64{"out": 1, "in": 1},
				ByChain:      map[string]int64{"BSC": 2},
			}, nil
		},
	}
	handler := newBridgeTestServer(newTestEngine(nil, nil, nil, bridges, nil))

	req := httptest.NewRequest(http.MethodGet, "/bridge/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var got records.BridgeStats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.TotalBridges != 2 {
		t.Errorf("total bridges = %d, want 2", got.TotalBridges)
	}
	if !got.TotalFees.Equal(decimal.RequireFromString("0.75")) {
		t.Errorf("total fees = %s, want 0.75", got.TotalFees)
	}
	if got.ByDirection["out"] != 1 || got.ByDirection["in"] != 1 {
		t.Errorf("by direction = %+v, want out:1 in:1", got.ByDirection)
	}
}
