// Package bridge moves value between the native ledger and external chains
// using a lock-then-mint protocol with external transaction verification.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexchain-labs/asset-gateway/internal/metrics"
	"github.com/nexchain-labs/asset-gateway/pkg/auth"
	"github.com/nexchain-labs/asset-gateway/pkg/config"
	"github.com/nexchain-labs/asset-gateway/pkg/feerouter"
	"github.com/nexchain-labs/asset-gateway/pkg/keymutex"
	"github.com/nexchain-labs/asset-gateway/pkg/ledger"
	"github.com/nexchain-labs/asset-gateway/pkg/records"
	"github.com/nexchain-labs/asset-gateway/pkg/store"
)

var (
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrAmountBelowMinimum = errors.New("amount below minimum bridgeable amount")
	ErrUnsupportedChain   = errors.New("unsupported destination chain")
	ErrInvalidRecipient   = errors.New("invalid recipient address")
	ErrInsufficientFunds  = errors.New("insufficient balance")
	ErrVerificationFailed = errors.New("transaction verification failed")
	ErrAlreadyProcessed   = errors.New("source transaction already processed")
	ErrBridgeInFlight     = errors.New("bridge-in for source transaction already in flight")
)

const (
	defaultEstimatedTime = 15 * time.Minute
	defaultHistoryLimit  = 200
)

var (
	defaultFeeRate   = decimal.RequireFromString("0.005")
	defaultMinAmount = decimal.RequireFromString("10")

	// amountTolerance bounds how far the on-chain amount reported by a
	// dedicated verifier may drift from the claimed amount.
	amountTolerance = decimal.RequireFromString("0.01")
)

// evmChains marks destinations whose recipient addresses are EVM hex addresses
var evmChains = map[string]bool{
	"BSC":      true,
	"ETHEREUM": true,
	"POLYGON":  true,
}

// LedgerClient defines the ledger operations the bridge engine needs.
type LedgerClient interface {
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
	SendTransaction(ctx context.Context, req *ledger.SendRequest) (*ledger.Transaction, error)
	MintTokens(ctx context.Context, address string, amount decimal.Decimal, reason string) (*ledger.MintResult, error)
	BlockchainInfo(ctx context.Context) (*ledger.BlockchainInfo, error)
	PendingTransactions(ctx context.Context) ([]ledger.Transaction, error)
	VerifyBridgeTransaction(ctx context.Context, req *ledger.VerifyRequest) (*ledger.Verification, error)
}

// FeeRouter routes the bridge fee portion to the treasury.
type FeeRouter interface {
	RouteBridgeFee(ctx context.Context, amount decimal.Decimal, from, signingKey, parentOpID string) (*feerouter.FeeResult, error)
}

// Engine executes bridge transfers in both directions
type Engine struct {
	feeRate   decimal.Decimal
	minAmount decimal.Decimal
	contracts map[string]string
	estimated map[string]time.Duration
	verifiers map[string]Verifier
	ledger    LedgerClient
	fees      FeeRouter
	bridges   store.BridgeStore
	locks     *keymutex.KeyMutex
	logger    *zap.Logger
}

// NewEngine creates a bridge engine. An empty contract address for a chain
// puts that chain in lock-only mode; chains absent from the verifier map fall
// back to the generic backend verification.
func NewEngine(
	cfg *config.BridgeConfig,
	ledgerClient LedgerClient,
	fees FeeRouter,
	bridges store.BridgeStore,
	verifiers map[string]Verifier,
	logger *zap.Logger,
) *Engine {
	contracts := cfg.Contracts
	if len(contracts) == 0 {
		contracts = map[string]string{"BSC": ""}
	}
	if verifiers == nil {
		verifiers = map[string]Verifier{}
	}

	return &Engine{
		feeRate:   parseDecimal(cfg.FeeRate, defaultFeeRate),
		minAmount: parseDecimal(cfg.MinAmount, defaultMinAmount),
		contracts: contracts,
		estimated: cfg.EstimatedTime,
		verifiers: verifiers,
		ledger:    ledgerClient,
		fees:      fees,
		bridges:   bridges,
		locks:     keymutex.New(),
		logger:    logger,
	}
}

// Quote is the fee breakdown of one bridge-out
type Quote struct {
	Fee       decimal.Decimal `json:"fee"`
	NetAmount decimal.Decimal `json:"netAmount"`
}

// Quote computes the bridge fee: fee = amount x feeRate, net = amount - fee.
// Pure, no side effects.
func (e *Engine) Quote(amount decimal.Decimal) *Quote {
	fee := amount.Mul(e.feeRate)
	return &Quote{
		Fee:       fee,
		NetAmount: amount.Sub(fee),
	}
}

// OutRequest describes a native-to-external bridge transfer
type OutRequest struct {
	Amount      decimal.Decimal
	ToChain     string
	Recipient   string
	FromAddress string
	SigningKey  string
}

// OutResult reports an initiated bridge-out. Warning is set when the
// destination contract is not yet deployed and the funds were locked instead.
type OutResult struct {
	Transaction    *ledger.Transaction   `json:"transaction"`
	FeeTransaction *ledger.Transaction   `json:"feeTransaction,omitempty"`
	FeeOutboxed    bool                  `json:"feeOutboxed,omitempty"`
	Record         *records.BridgeRecord `json:"record"`
	EstimatedTime  string                `json:"estimatedTime"`
	Warning        string                `json:"warning,omitempty"`
}

// BridgeOut debits the net amount to the destination's bridge contract (or to
// a one-off lock address when no contract is deployed), routes the fee, and
// persists the pending record. Validation failures reject before any ledger
// call and leave no record.
func (e *Engine) BridgeOut(ctx context.Context, req *OutRequest) (*OutResult, error) {
	if req.Amount.LessThan(e.minAmount) {
		return nil, fmt.Errorf("%w: minimum is %s", ErrAmountBelowMinimum, e.minAmount)
	}
	contract, ok := e.contracts[req.ToChain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, req.ToChain)
	}
	recipient := req.Recipient
	if evmChains[req.ToChain] {
		if !auth.ValidateEVMAddress(recipient) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRecipient, recipient)
		}
		recipient = auth.NormalizeAddress(recipient)
	}

	e.locks.Lock(req.FromAddress)
	defer e.locks.Unlock(req.FromAddress)

	balance, err := e.ledger.Balance(ctx, req.FromAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to check balance: %w", err)
	}
	if balance.LessThan(req.Amount) {
		return nil, ErrInsufficientFunds
	}

	quote := e.Quote(req.Amount)

	lockOnly := contract == ""
	destination := contract
	note, warning := "", ""
	if lockOnly {
		destination = "bridge-lock-" + uuid.New().String()
		note = "awaiting contract deployment"
		warning = fmt.Sprintf("bridge contract not yet deployed on %s; funds locked awaiting deployment", req.ToChain)
	}

	tx, err := e.ledger.SendTransaction(ctx, &ledger.SendRequest{
		From:       req.FromAddress,
		To:         destination,
		Amount:     quote.NetAmount,
		SigningKey: req.SigningKey,
		Memo:       "bridge:out:" + req.ToChain,
	})
	if err != nil {
		metrics.BridgeTransfersTotal.WithLabelValues("out", "failed").Inc()
		return nil, fmt.Errorf("bridge transfer failed: %w", err)
	}

	result := &OutResult{
		Transaction:   tx,
		EstimatedTime: e.estimatedTime(req.ToChain).String(),
		Warning:       warning,
	}

	feeRes, err := e.fees.RouteBridgeFee(ctx, quote.Fee, req.FromAddress, req.SigningKey, tx.Hash)
	if err != nil {
		e.logger.Warn("Bridge fee routing failed",
			zap.String("address", req.FromAddress),
			zap.String("tx_hash", tx.Hash),
			zap.Error(err))
	} else {
		result.FeeTransaction = feeRes.Transaction
		result.FeeOutboxed = feeRes.Outboxed
	}

	now := time.Now()
	rec := &records.BridgeRecord{
		ID:               uuid.New().String(),
		Direction:        records.DirectionOut,
		FromChain:        records.ChainNative,
		ToChain:          req.ToChain,
		Amount:           req.Amount,
		Fee:              quote.Fee,
		NetAmount:        quote.NetAmount,
		RecipientAddress: recipient,
		NativeTxHash:     tx.Hash,
		Status:           records.BridgePending,
		Note:             note,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.bridges.CreateBridgeRecord(ctx, rec); err != nil {
		// The debit already happened; keep the trail in the logs so the
		// transfer can still be reconciled by hand.
		metrics.ErrorsTotal.WithLabelValues("bridge", "record_persist").Inc()
		e.logger.Error("Failed to persist bridge record",
			zap.String("native_tx", tx.Hash),
			zap.String("to_chain", req.ToChain),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
	}
	result.Record = rec

	metrics.BridgeTransfersTotal.WithLabelValues("out", "pending").Inc()
	metrics.BridgeTransferAmount.WithLabelValues("out", req.ToChain).Observe(req.Amount.InexactFloat64())

	e.logger.Info("Bridge-out initiated",
		zap.String("address", req.FromAddress),
		zap.String("to_chain", req.ToChain),
		zap.String("amount", req.Amount.String()),
		zap.String("fee", quote.Fee.String()),
		zap.Bool("lock_only", lockOnly))

	return result, nil
}

// InRequest describes an external-to-native bridge claim
type InRequest struct {
	Amount       decimal.Decimal
	FromChain    string
	SourceTxHash string
	Recipient    string
}

// InResult reports a settled bridge-in
type InResult struct {
	MintTransactionHash string                `json:"mintTransactionHash"`
	Record              *records.BridgeRecord `json:"record"`
	Verification        *ledger.Verification  `json:"verification"`
}

// BridgeIn verifies a claimed external-chain deposit, claims the source hash,
// and mints the amount on the native ledger. A mint failure leaves the claim
// pending with the error attached for operator review; it is never retried
// automatically.
func (e *Engine) BridgeIn(ctx context.Context, req *InRequest) (*InResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	verification, err := e.verify(ctx, req)
	if err != nil {
		e.recordFailedIn(ctx, req, fmt.Sprintf("verification call failed: %v", err))
		metrics.BridgeTransfersTotal.WithLabelValues("in", "failed").Inc()
		return nil, fmt.Errorf("verification call failed: %w", err)
	}
	if !verification.Verified {
		e.recordFailedIn(ctx, req, ErrVerificationFailed.Error())
		metrics.BridgeTransfersTotal.WithLabelValues("in", "failed").Inc()
		return nil, ErrVerificationFailed
	}

	now := time.Now()
	rec := &records.BridgeRecord{
		ID:               uuid.New().String(),
		Direction:        records.DirectionIn,
		FromChain:        req.FromChain,
		ToChain:          records.ChainNative,
		Amount:           req.Amount,
		Fee:              decimal.Zero,
		NetAmount:        req.Amount,
		RecipientAddress: req.Recipient,
		SourceTxHash:     req.SourceTxHash,
		Status:           records.BridgePending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.bridges.ClaimBridgeIn(ctx, rec); err != nil {
		switch {
		case errors.Is(err, store.ErrHashCompleted):
			return nil, ErrAlreadyProcessed
		case errors.Is(err, store.ErrHashInFlight):
			return nil, ErrBridgeInFlight
		}
		return nil, fmt.Errorf("failed to claim bridge-in: %w", err)
	}

	mint, err := e.ledger.MintTokens(ctx, req.Recipient, req.Amount, "bridge_in:"+req.FromChain)
	if err != nil {
		if markErr := e.bridges.MarkBridgeMintPending(ctx, rec.ID, err.Error()); markErr != nil {
			e.logger.Error("Failed to flag unsettled bridge-in claim",
				zap.String("record_id", rec.ID),
				zap.Error(markErr))
		}
		metrics.ErrorsTotal.WithLabelValues("bridge", "mint").Inc()
		e.logger.Error("Bridge-in mint failed, claim left pending for review",
			zap.String("record_id", rec.ID),
			zap.String("source_tx", req.SourceTxHash),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
		return nil, fmt.Errorf("mint failed: %w", err)
	}

	payload, merr := json.Marshal(verification)
	if merr != nil {
		e.logger.Warn("Failed to encode verification payload", zap.Error(merr))
	}
	if err := e.bridges.CompleteBridgeIn(ctx, rec.ID, mint.TransactionHash, payload); err != nil {
		// The mint already settled; a retried claim would hit the in-flight
		// guard, so report success and leave the stamp to the operator.
		metrics.ErrorsTotal.WithLabelValues("bridge", "record_persist").Inc()
		e.logger.Error("Failed to complete bridge-in record after mint",
			zap.String("record_id", rec.ID),
			zap.String("mint_tx", mint.TransactionHash),
			zap.Error(err))
	}
	rec.Status = records.BridgeCompleted
	rec.NativeTxHash = mint.TransactionHash
	rec.Verification = payload

	metrics.BridgeTransfersTotal.WithLabelValues("in", "completed").Inc()
	metrics.BridgeTransferAmount.WithLabelValues("in", req.FromChain).Observe(req.Amount.InexactFloat64())

	e.logger.Info("Bridge-in completed",
		zap.String("from_chain", req.FromChain),
		zap.String("source_tx", req.SourceTxHash),
		zap.String("mint_tx", mint.TransactionHash),
		zap.String("amount", req.Amount.String()))

	return &InResult{
		MintTransactionHash: mint.TransactionHash,
		Record:              rec,
		Verification:        verification,
	}, nil
}

// verify resolves the claimed deposit through the chain's dedicated verifier
// when one is registered, falling back to the generic backend call on
// verifier errors. A dedicated verifier's reported amount must be within the
// tolerance of the claim.
func (e *Engine) verify(ctx context.Context, req *InRequest) (*ledger.Verification, error) {
	if verifier, ok := e.verifiers[req.FromChain]; ok {
		verification, err := verifier.VerifyTransaction(ctx, req.SourceTxHash)
		if err == nil {
			if verification.Verified && verification.Transaction != nil &&
				!withinTolerance(req.Amount, verification.Transaction.Value) {
				e.logger.Warn("Verified amount outside tolerance",
					zap.String("source_tx", req.SourceTxHash),
					zap.String("claimed", req.Amount.String()),
					zap.String("observed", verification.Transaction.Value.String()))
				return &ledger.Verification{Verified: false, Transaction: verification.Transaction}, nil
			}
			return verification, nil
		}
		e.logger.Warn("Dedicated verifier failed, falling back to backend verification",
			zap.String("chain", req.FromChain),
			zap.String("source_tx", req.SourceTxHash),
			zap.Error(err))
	}

	return e.ledger.VerifyBridgeTransaction(ctx, &ledger.VerifyRequest{
		Chain:     req.FromChain,
		TxHash:    req.SourceTxHash,
		Amount:    req.Amount,
		Recipient: req.Recipient,
	})
}

// recordFailedIn persists the audit record of a rejected claim. A source hash
// allows only one inbound record, so a repeat rejection refreshes the error
// text on the existing failed record; completed and pending records are left
// untouched.
func (e *Engine) recordFailedIn(ctx context.Context, req *InRequest, errMsg string) {
	now := time.Now()
	rec := &records.BridgeRecord{
		ID:               uuid.New().String(),
		Direction:        records.DirectionIn,
		FromChain:        req.FromChain,
		ToChain:          records.ChainNative,
		Amount:           req.Amount,
		Fee:              decimal.Zero,
		NetAmount:        req.Amount,
		RecipientAddress: req.Recipient,
		SourceTxHash:     req.SourceTxHash,
		Status:           records.BridgeFailed,
		ErrorMessage:     errMsg,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := e.bridges.CreateBridgeRecord(ctx, rec)
	if err == nil {
		return
	}

	existing, lookErr := e.bridges.BridgeRecordBySourceHash(ctx, req.SourceTxHash)
	if lookErr != nil {
		e.logger.Warn("Failed to persist failed bridge-in record",
			zap.String("source_tx", req.SourceTxHash),
			zap.Error(err))
		return
	}
	if existing.Status != records.BridgeFailed {
		return
	}
	if markErr := e.bridges.MarkBridgeFailed(ctx, existing.ID, errMsg); markErr != nil {
		e.logger.Warn("Failed to refresh failed bridge-in record",
			zap.String("record_id", existing.ID),
			zap.Error(markErr))
	}
}

// StatusResult reports where a transaction hash was found
type StatusResult struct {
	Status      string                `json:"status"`
	Record      *records.BridgeRecord `json:"record,omitempty"`
	Transaction *ledger.Transaction   `json:"transaction,omitempty"`
}

// Status looks a transaction hash up in the record store first, then in the
// ledger chain snapshot, then in the pending pool.
func (e *Engine) Status(ctx context.Context, txHash string) (*StatusResult, error) {
	rec, err := e.bridges.BridgeRecordByHash(ctx, txHash)
	if err == nil {
		return &StatusResult{Status: string(rec.Status), Record: rec}, nil
	}
	if !errors.Is(err, store.ErrBridgeRecordNotFound) {
		return nil, err
	}

	info, err := e.ledger.BlockchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain snapshot: %w", err)
	}
	for _, block := range info.Chain {
		for i := range block.Transactions {
			if block.Transactions[i].Hash == txHash {
				return &StatusResult{Status: "confirmed", Transaction: &block.Transactions[i]}, nil
			}
		}
	}

	pending, err := e.ledger.PendingTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending pool: %w", err)
	}
	for i := range pending {
		if pending[i].Hash == txHash {
			return &StatusResult{Status: "pending", Transaction: &pending[i]}, nil
		}
	}

	return &StatusResult{Status: "not_found"}, nil
}

// History returns recent bridge records, newest first, excluding archived
func (e *Engine) History(ctx context.Context) ([]*records.BridgeRecord, error) {
	return e.bridges.ListBridgeRecords(ctx, store.WithLimit(defaultHistoryLimit))
}

// Stats returns the aggregate bridge statistics
func (e *Engine) Stats(ctx context.Context) (*records.BridgeStats, error) {
	return e.bridges.BridgeStats(ctx)
}

func (e *Engine) estimatedTime(chain string) time.Duration {
	if d, ok := e.estimated[chain]; ok && d > 0 {
		return d
	}
	return defaultEstimatedTime
}

func withinTolerance(claimed, observed decimal.Decimal) bool {
	diff := observed.Sub(claimed).Abs()
	return diff.LessThanOrEqual(claimed.Mul(amountTolerance))
}

func parseDecimal(s string, fallback decimal.Decimal) decimal.Decimal {
	if s == "" {
		return fallback
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fallback
	}
	return d
}
