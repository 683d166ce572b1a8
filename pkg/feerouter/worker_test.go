package feerouter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexchain-labs/asset-gateway/pkg/config"
	"github.com/nexchain-labs/asset-gateway/pkg/ledger"
	"github.com/nexchain-labs/asset-gateway/pkg/records"
)

func testWorkerConfig() *config.FeesConfig {
	return &config.FeesConfig{
		Rate:            "0.001",
		MinFee:          "0.01",
		MaxFee:          "10",
		OutboxInterval:  time.Minute,
		OutboxBaseDelay: time.Minute,
		OutboxMaxDelay:  30 * time.Minute,
		MaxAttempts:     3,
	}
}

func dueEntry(attempts int) *records.FeeOutboxEntry {
	return &records.FeeOutboxEntry{
		ID:          "entry-1",
		Kind:        records.FeeKindSwap,
		ParentOpID:  "op-1",
		FromAddress: "alice",
		Amount:      decimal.RequireFromString("0.30"),
		SigningKey:  "alice-key",
		Status:      records.OutboxPending,
		Attempts:    attempts,
	}
}

func TestOutboxWorker_DeliversDueEntry(t *testing.T) {
	var sent *ledger.SendRequest
	ledgerMock := &MockLedger{
		SendTransactionFunc: func(ctx context.Context, req *ledger.SendRequest) (*ledger.Transaction, error) {
			sent = req
			return &ledger.Transaction{Hash: "fee-tx"}, nil
		},
	}
	var deliveredID, deliveredHash string
	outbox := &MockOutbox{
		DueFeeEntriesFunc: func(ctx context.Context, now time.Time, limit int) ([]*records.FeeOutboxEntry, error) {
			return []*records.FeeOutboxEntry{dueEntry(1)}, nil
		},
		MarkFeeDeliveredFunc: func(ctx context.Context, id, txHash string) error {
			deliveredID, deliveredHash = id, txHash
			return nil
		},
	}
	router := newTestRouter(ledgerMock, nil, outbox)
	worker := NewOutboxWorker(router, testWorkerConfig(), zap.NewNop())

	worker.DeliverDue(context.Background())

	if sent == nil {
		t.Fatal("expected a delivery attempt")
	}
	if sent.To != fallbackTreasuryAddress {
		t.Errorf("expected delivery to treasury, got %s", sent.To)
	}
	if sent.Memo != string(records.FeeKindSwap) {
		t.Errorf("expected memo swap_fee, got %s", sent.Memo)
	}
	if deliveredID != "entry-1" || deliveredHash != "fee-tx" {
		t.Fatalf("expected entry-1 marked delivered with fee-tx, got %s/%s", deliveredID, deliveredHash)
	}
}

func TestOutboxWorker_FailureSchedulesRetry(t *testing.T) {
	ledgerMock := &MockLedger{
		SendTransactionFunc: func(ctx context.Context, req *ledger.SendRequest) (*ledger.Transaction, error) {
			return nil, errors.New("ledger down")
		},
	}
	var retryID, retryErr string
	var retryAt time.Time
	failed := false
	outbox := &MockOutbox{
		DueFeeEntriesFunc: func(ctx context.Context, now time.Time, limit int) ([]*records.FeeOutboxEntry, error) {
			return []*records.FeeOutboxEntry{dueEntry(0)}, nil
		},
		MarkFeeRetryFunc: func(ctx context.Context, id string, nextAttemptAt time.Time, lastErr string) error {
			retryID, retryAt, retryErr = id, nextAttemptAt, lastErr
			return nil
		},
		MarkFeeFailedFunc: func(ctx context.Context, id, lastErr string) error {
			failed = true
			return nil
		},
	}
	router := newTestRouter(ledgerMock, nil, outbox)
	worker := NewOutboxWorker(router, testWorkerConfig(), zap.NewNop())

	before := time.Now()
	worker.DeliverDue(context.Background())

	if failed {
		t.Fatal("first failure must schedule a retry, not mark failed")
	}
	if retryID != "entry-1" {
		t.Fatalf("expected retry for entry-1, got %q", retryID)
	}
	if retryErr != "ledger down" {
		t.Errorf("expected last error recorded, got %q", retryErr)
	}
	// First retry is one base delay out.
	if retryAt.Before(before.Add(time.Minute)) || retryAt.After(time.Now().Add(2*time.Minute)) {
		t.Errorf("expected next attempt about a minute out, got %s", retryAt.Sub(before))
	}
}

func TestOutboxWorker_MaxAttemptsMarksFailed(t *testing.T) {
	ledgerMock := &MockLedger{
		SendTransactionFunc: func(ctx context.Context, req *ledger.SendRequest) (*ledger.Transaction, error) {
			return nil, errors.New("ledger down")
		},
	}
	var failedID, failedErr string
	retried := false
	outbox := &MockOutbox{
		DueFeeEntriesFunc: func(ctx context.Context, now time.Time, limit int) ([]*records.FeeOutboxEntry, error) {
			// Two prior attempts; this one exhausts MaxAttempts=3.
			return []*records.FeeOutboxEntry{dueEntry(2)}, nil
		},
		MarkFeeRetryFunc: func(ctx context.Context, id string, nextAttemptAt time.Time, lastErr string) error {
			retried = true
			return nil
		},
		MarkFeeFailedFunc: func(ctx context.Context, id, lastErr string) error {
			failedID, failedErr = id, lastErr
			return nil
		},
	}
	router := newTestRouter(ledgerMock, nil, outbox)
	worker := NewOutboxWorker(router, testWorkerConfig(), zap.NewNop())

	worker.DeliverDue(context.Background())

	if retried {
		t.Fatal("exhausted entry must not be rescheduled")
	}
	if failedID != "entry-1" {
		t.Fatalf("expected entry-1 marked failed, got %q", failedID)
	}
	if failedErr != "ledger down" {
		t.Errorf("expected last error recorded, got %q", failedErr)
	}
}

func TestOutboxWorker_BackoffCapped(t *testing.T) {
	router := newTestRouter(nil, nil, nil)
	worker := NewOutboxWorker(router, testWorkerConfig(), zap.NewNop())

	if got := worker.backoff(1); got != time.Minute {
		t.Errorf("expected 1m for first retry, got %s", got)
	}
	if got := worker.backoff(5); got != 5*time.Minute {
		t.Errorf("expected 5m for fifth retry, got %s", got)
	}
	if got := worker.backoff(1000); got != 30*time.Minute {
		t.Errorf("expected cap at 30m, got %s", got)
	}
}

func TestOutboxWorker_StartStop(t *testing.T) {
	outbox := &MockOutbox{
		DueFeeEntriesFunc: func(ctx context.Context, now time.Time, limit int) ([]*records.FeeOutboxEntry, error) {
			return nil, nil
		},
	}
	router := newTestRouter(nil, nil, outbox)

	cfg := testWorkerConfig()
	cfg.OutboxInterval = 10 * time.Millisecond
	worker := NewOutboxWorker(router, cfg, zap.NewNop())

	worker.Start()
	time.Sleep(30 * time.Millisecond)
	worker.Stop() // must return, not hang
}
