package swap

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/nexchain-labs/asset-gateway/pkg/dex"
	"github.com/nexchain-labs/asset-gateway/pkg/feerouter"
	"github.com/nexchain-labs/asset-gateway/pkg/ledger"
	"github.com/nexchain-labs/asset-gateway/pkg/records"
	"github.com/nexchain-labs/asset-gateway/pkg/store"
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

// MockDEX is a mock implementation of DEXClient
type MockDEX struct {
	ConfiguredFunc      func() bool
	SpotPriceFunc       func(ctx context.Context, base, quote string) (decimal.Decimal, error)
	QuoteAmountOutFunc  func(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (*dex.Quote, error)
	SwapFunc            func(ctx context.Context, req *dex.SwapRequest) (*dex.SwapResult, error)
	RequestTransferFunc func(ctx context.Context, req *dex.TransferRequest) (*dex.TransferResult, error)
}

func (m *MockDEX) Configured() bool {
	if m.ConfiguredFunc != nil {
		return m.ConfiguredFunc()
	}
	return true
}

func (m *MockDEX) SpotPrice(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	if m.SpotPriceFunc != nil {
		return m.SpotPriceFunc(ctx, base, quote)
	}
	return decimal.Zero, dex.ErrNotConfigured
}

func (m *MockDEX) QuoteAmountOut(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (*dex.Quote, error) {
	if m.QuoteAmountOutFunc != nil {
		return m.QuoteAmountOutFunc(ctx, tokenIn, tokenOut, amountIn)
	}
	return nil, dex.ErrNotConfigured
}

func (m *MockDEX) Swap(ctx context.Context, req *dex.SwapRequest) (*dex.SwapResult, error) {
	if m.SwapFunc != nil {
		return m.SwapFunc(ctx, req)
	}
	return nil, dex.ErrNotConfigured
}

func (m *MockDEX) RequestTransfer(ctx context.Context, req *dex.TransferRequest) (*dex.TransferResult, error) {
	if m.RequestTransferFunc != nil {
		return m.RequestTransferFunc(ctx, req)
	}
	return nil, dex.ErrNotConfigured
}

// MockFees is a mock implementation of FeeRouter
type MockFees struct {
	RouteSwapFeeFunc func(ctx context.Context, amount decimal.Decimal, from, signingKey, parentOpID string) (*feerouter.FeeResult, error)
}

func (m *MockFees) RouteSwapFee(ctx context.Context, amount decimal.Decimal, from, signingKey, parentOpID string) (*feerouter.FeeResult, error) {
	if m.RouteSwapFeeFunc != nil {
		return m.RouteSwapFeeFunc(ctx, amount, from, signingKey, parentOpID)
	}
	return &feerouter.FeeResult{Transaction: &ledger.Transaction{Hash: "mock-fee-tx"}}, nil
}

// MockSwapStore is a mock implementation of store.SwapStore
type MockSwapStore struct {
	CreateSwapRecordFunc func(ctx context.Context, rec *records.SwapRecord) error
	ListSwapRecordsFunc  func(ctx context.Context, opts ...store.QueryOption) ([]*records.SwapRecord, error)
	Created              []*records.SwapRecord
}

func (m *MockSwapStore) CreateSwapRecord(ctx context.Context, rec *records.SwapRecord) error {
	m.Created = append(m.Created, rec)
	if m.CreateSwapRecordFunc != nil {
		return m.CreateSwapRecordFunc(ctx, rec)
	}
	return nil
}

func (m *MockSwapStore) ListSwapRecords(ctx context.Context, opts ...store.QueryOption) ([]*records.SwapRecord, error) {
	if m.ListSwapRecordsFunc != nil {
		return m.ListSwapRecordsFunc(ctx, opts...)
	}
	return nil, nil
}
