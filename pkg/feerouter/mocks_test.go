package feerouter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nexchain-labs/asset-gateway/pkg/ledger"
	"github.com/nexchain-labs/asset-gateway/pkg/records"
)

// MockLedger is a mock implementation of LedgerClient
type MockLedger struct {
	BalanceFunc            func(ctx context.Context, address string) (decimal.Decimal, error)
	SendTransactionFunc    func(ctx context.Context, req *ledger.SendRequest) (*ledger.Transaction, error)
	TransactionHistoryFunc func(ctx context.Context, address string) ([]ledger.HistoryEntry, error)
}

func (m *MockLedger) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	if m.BalanceFunc != nil {
		return m.BalanceFunc(ctx, address)
	}
	return decimal.Zero, nil
}

func (m *MockLedger) SendTransaction(ctx context.Context, req *ledger.SendRequest) (*ledger.Transaction, error) {
	if m.SendTransactionFunc != nil {
		return m.SendTransactionFunc(ctx, req)
	}
	return &ledger.Transaction{Hash: "mock-tx"}, nil
}

func (m *MockLedger) TransactionHistory(ctx context.Context, address string) ([]ledger.HistoryEntry, error) {
	if m.TransactionHistoryFunc != nil {
		return m.TransactionHistoryFunc(ctx, address)
	}
	return nil, nil
}

// MockSettings is a mock implementation of store.SettingsStore
type MockSettings struct {
	GetSettingFunc func(ctx context.Context, key string) (string, error)
	SetSettingFunc func(ctx context.Context, key, value string) error
	GetCalls       int
}

func (m *MockSettings) GetSetting(ctx context.Context, key string) (string, error) {
	m.GetCalls++
	if m.GetSettingFunc != nil {
		return m.GetSettingFunc(ctx, key)
	}
	return "", nil
}

func (m *MockSettings) SetSetting(ctx context.Context, key, value string) error {
	if m.SetSettingFunc != nil {
		return m.SetSettingFunc(ctx, key, value)
	}
	return nil
}

// MockOutbox is a mock implementation of store.FeeOutboxStore
type MockOutbox struct {
	EnqueueFeeFunc       func(ctx context.Context, entry *records.FeeOutboxEntry) error
	DueFeeEntriesFunc    func(ctx context.Context, now time.Time, limit int) ([]*records.FeeOutboxEntry, error)
	MarkFeeDeliveredFunc func(ctx context.Context, id, txHash string) error
	MarkFeeRetryFunc     func(ctx context.Context, id string, nextAttemptAt time.Time, lastErr string) error
	MarkFeeFailedFunc    func(ctx context.Context, id, lastErr string) error
	CountPendingFeesFunc func(ctx context.Context) (int, error)
}

func (m *MockOutbox) EnqueueFee(ctx context.Context, entry *records.FeeOutboxEntry) error {
	if m.EnqueueFeeFunc != nil {
		return m.EnqueueFeeFunc(ctx, entry)
	}
	return nil
}

func (m *MockOutbox) DueFeeEntries(ctx context.Context, now time.Time, limit int) ([]*records.FeeOutboxEntry, error) {
	if m.DueFeeEntriesFunc != nil {
		return m.DueFeeEntriesFunc(ctx, now, limit)
	}
	return nil, nil
}

func (m *MockOutbox) MarkFeeDelivered(ctx context.Context, id, txHash string) error {
	if m.MarkFeeDeliveredFunc != nil {
		return m.MarkFeeDeliveredFunc(ctx, id, txHash)
	}
	return nil
}

func (m *MockOutbox) MarkFeeRetry(ctx context.Context, id string, nextAttemptAt time.Time, lastErr string) error {
	if m.MarkFeeRetryFunc != nil {
		return m.MarkFeeRetryFunc(ctx, id, nextAttemptAt, lastErr)
	}
	return nil
}

func (m *MockOutbox) MarkFeeFailed(ctx context.Context, id, lastErr string) error {
	if m.MarkFeeFailedFunc != nil {
		return m.MarkFeeFailedFunc(ctx, id, lastErr)
	}
	return nil
}

func (m *MockOutbox) CountPendingFees(ctx context.Context) (int, error) {
	if m.CountPendingFeesFunc != nil {
		return m.CountPendingFeesFunc(ctx)
	}
	return 0, nil
}
