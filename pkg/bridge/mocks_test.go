package bridge

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/nexchain-labs/asset-gateway/pkg/feerouter"
	"github.com/nexchain-labs/asset-gateway/pkg/ledger"
	"github.com/nexchain-labs/asset-gateway/pkg/records"
	"github.com/nexchain-labs/asset-gateway/pkg/store"
)

// MockLedger is a mock implementation of LedgerClient
type MockLedger struct {
	BalanceFunc             func(ctx context.Context, address string) (decimal.Decimal, error)
	SendTransactionFunc     func(ctx context.Context, req *ledger.SendRequest) (*ledger.Transaction, error)
	MintTokensFunc          func(ctx context.Context, address string, amount decimal.Decimal, reason string) (*ledger.MintResult, error)
	BlockchainInfoFunc      func(ctx context.Context) (*ledger.BlockchainInfo, error)
	PendingTransactionsFunc func(ctx context.Context) ([]ledger.Transaction, error)
	VerifyFunc              func(ctx context.Context, req *ledger.VerifyRequest) (*ledger.Verification, error)
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

func (m *MockLedger) MintTokens(ctx context.Context, address string, amount decimal.Decimal, reason string) (*ledger.MintResult, error) {
	if m.MintTokensFunc != nil {
		return m.MintTokensFunc(ctx, address, amount, reason)
	}
	return &ledger.MintResult{TransactionHash: "mock-mint-tx"}, nil
}

func (m *MockLedger) BlockchainInfo(ctx context.Context) (*ledger.BlockchainInfo, error) {
	if m.BlockchainInfoFunc != nil {
		return m.BlockchainInfoFunc(ctx)
	}
	return &ledger.BlockchainInfo{}, nil
}

func (m *MockLedger) PendingTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	if m.PendingTransactionsFunc != nil {
		return m.PendingTransactionsFunc(ctx)
	}
	return nil, nil
}

func (m *MockLedger) VerifyBridgeTransaction(ctx context.Context, req *ledger.VerifyRequest) (*ledger.Verification, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, req)
	}
	return &ledger.Verification{Verified: true}, nil
}

// MockFees is a mock implementation of FeeRouter
type MockFees struct {
	RouteBridgeFeeFunc func(ctx context.Context, amount decimal.Decimal, from, signingKey, parentOpID string) (*feerouter.FeeResult, error)
}

func (m *MockFees) RouteBridgeFee(ctx context.Context, amount decimal.Decimal, from, signingKey, parentOpID string) (*feerouter.FeeResult, error) {
	if m.RouteBridgeFeeFunc != nil {
		return m.RouteBridgeFeeFunc(ctx, amount, from, signingKey, parentOpID)
	}
	return &feerouter.FeeResult{Transaction: &ledger.Transaction{Hash: "mock-fee-tx"}}, nil
}

// MockVerifier is a mock implementation of Verifier
type MockVerifier struct {
	VerifyTransactionFunc func(ctx context.Context, txHash string) (*ledger.Verification, error)
}

func (m *MockVerifier) VerifyTransaction(ctx context.Context, txHash string) (*ledger.Verification, error) {
	if m.VerifyTransactionFunc != nil {
		return m.VerifyTransactionFunc(ctx, txHash)
	}
	return &ledger.Verification{Verified: true}, nil
}

// MockBridgeStore is a mock implementation of store.BridgeStore
type MockBridgeStore struct {
	CreateBridgeRecordFunc    func(ctx context.Context, rec *records.BridgeRecord) error
	ClaimBridgeInFunc         func(ctx context.Context, rec *records.BridgeRecord) error
	CompleteBridgeInFunc      func(ctx context.Context, id, nativeTxHash string, verification json.RawMessage) error
	MarkBridgeMintPendingFunc func(ctx context.Context, id, errMsg string) error
	MarkBridgeFailedFunc      func(ctx context.Context, id, errMsg string) error
	BySourceHashFunc          func(ctx context.Context, sourceTxHash string) (*records.BridgeRecord, error)
	ByHashFunc                func(ctx context.Context, txHash string) (*records.BridgeRecord, error)
	ListBridgeRecordsFunc     func(ctx context.Context, opts ...store.QueryOption) ([]*records.BridgeRecord, error)
	BridgeStatsFunc           func(ctx context.Context) (*records.BridgeStats, error)

	Created []*records.BridgeRecord
	Claimed []*records.BridgeRecord
}

func (m *MockBridgeStore) CreateBridgeRecord(ctx context.Context, rec *records.BridgeRecord) error {
	m.Created = append(m.Created, rec)
	if m.CreateBridgeRecordFunc != nil {
		return m.CreateBridgeRecordFunc(ctx, rec)
	}
	return nil
}

func (m *MockBridgeStore) ClaimBridgeIn(ctx context.Context, rec *records.BridgeRecord) error {
	// Snapshot the record as the real store would persist it: the engine
	// mutates rec in place after a successful claim.
	snapshot := *rec
	m.Claimed = append(m.Claimed, &snapshot)
	if m.ClaimBridgeInFunc != nil {
		return m.ClaimBridgeInFunc(ctx, rec)
	}
	return nil
}

func (m *MockBridgeStore) CompleteBridgeIn(ctx context.Context, id, nativeTxHash string, verification json.RawMessage) error {
	if m.CompleteBridgeInFunc != nil {
		return m.CompleteBridgeInFunc(ctx, id, nativeTxHash, verification)
	}
	return nil
}

func (m *MockBridgeStore) MarkBridgeMintPending(ctx context.Context, id, errMsg string) error {
	if m.MarkBridgeMintPendingFunc != nil {
		return m.MarkBridgeMintPendingFunc(ctx, id, errMsg)
	}
	return nil
}

func (m *MockBridgeStore) MarkBridgeFailed(ctx context.Context, id, errMsg string) error {
	if m.MarkBridgeFailedFunc != nil {
		return m.MarkBridgeFailedFunc(ctx, id, errMsg)
	}
	return nil
}

func (m *MockBridgeStore) BridgeRecordBySourceHash(ctx context.Context, sourceTxHash string) (*records.BridgeRecord, error) {
	if m.BySourceHashFunc != nil {
		return m.BySourceHashFunc(ctx, sourceTxHash)
	}
	return nil, store.ErrBridgeRecordNotFound
}

func (m *MockBridgeStore) BridgeRecordByHash(ctx context.Context, txHash string) (*records.BridgeRecord, error) {
	if m.ByHashFunc != nil {
		return m.ByHashFunc(ctx, txHash)
	}
	return nil, store.ErrBridgeRecordNotFound
}

func (m *MockBridgeStore) ListBridgeRecords(ctx context.Context, opts ...store.QueryOption) ([]*records.BridgeRecord, error) {
	if m.ListBridgeRecordsFunc != nil {
		return m.ListBridgeRecordsFunc(ctx, opts...)
	}
	return nil, nil
}

func (m *MockBridgeStore) BridgeStats(ctx context.Context) (*records.BridgeStats, error) {
	if m.BridgeStatsFunc != nil {
		return m.BridgeStatsFunc(ctx)
	}
	return &records.BridgeStats{}, nil
}
