// Package swap implements same-chain swaps against the liquidity pool,
// DEX-delegated swaps, and the cross-chain lock-then-deliver path to BSC.
package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexchain-labs/asset-gateway/internal/metrics"
	"github.com/nexchain-labs/asset-gateway/pkg/config"
	"github.com/nexchain-labs/asset-gateway/pkg/dex"
	"github.com/nexchain-labs/asset-gateway/pkg/feerouter"
	"github.com/nexchain-labs/asset-gateway/pkg/keymutex"
	"github.com/nexchain-labs/asset-gateway/pkg/ledger"
	"github.com/nexchain-labs/asset-gateway/pkg/records"
	"github.com/nexchain-labs/asset-gateway/pkg/store"
)

var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrUnsupportedPair   = errors.New("unsupported token pair")
	ErrInsufficientFunds = errors.New("insufficient balance")
)

const (
	// memoPrefix tags every swap-related ledger transaction so history
	// lookups can recognize them.
	memoPrefix = "swap:"

	tokenNative  = "NCH"
	tokenWrapped = "wNCH"
)

var (
	defaultFeeRate  = decimal.RequireFromString("0.003")
	defaultSlippage = decimal.RequireFromString("0.01")
	one             = decimal.NewFromInt(1)
)

// LedgerClient defines the ledger operations the swap engine needs.
type LedgerClient interface {
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
	SendTransaction(ctx context.Context, req *ledger.SendRequest) (*ledger.Transaction, error)
	TransactionHistory(ctx context.Context, address string) ([]ledger.HistoryEntry, error)
}

// DEXClient defines the market-maker operations the swap engine needs.
type DEXClient interface {
	Configured() bool
	SpotPrice(ctx context.Context, base, quote string) (decimal.Decimal, error)
	QuoteAmountOut(ctx context.Context, tokenIn, tokenOut string, amountIn decimal.Decimal) (*dex.Quote, error)
	Swap(ctx context.Context, req *dex.SwapRequest) (*dex.SwapResult, error)
	RequestTransfer(ctx context.Context, req *dex.TransferRequest) (*dex.TransferResult, error)
}

// FeeRouter routes the swap fee portion to the treasury.
type FeeRouter interface {
	RouteSwapFee(ctx context.Context, amount decimal.Decimal, from, signingKey, parentOpID string) (*feerouter.FeeResult, error)
}

// Engine executes swaps
type Engine struct {
	feeRate     decimal.Decimal
	slippage    decimal.Decimal
	pool        string
	targetChain string
	supported   map[string]bool
	ledger      LedgerClient
	dex         DEXClient
	fees        FeeRouter
	swaps       store.SwapStore
	locks       *keymutex.KeyMutex
	logger      *zap.Logger

	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewEngine creates a swap engine seeded with the configured default rates
func NewEngine(
	cfg *config.SwapConfig,
	ledgerClient LedgerClient,
	dexClient DEXClient,
	fees FeeRouter,
	swaps store.SwapStore,
	logger *zap.Logger,
) *Engine {
	supported := make(map[string]bool)
	tokens := cfg.SupportedTokens
	if len(tokens) == 0 {
		tokens = []string{tokenNative, tokenWrapped, "USDT"}
	}
	for _, token := range tokens {
		supported[token] = true
	}

	rates := make(map[string]decimal.Decimal)
	for pair, raw := range cfg.DefaultRates {
		rate, err := decimal.NewFromString(raw)
		if err != nil || rate.LessThanOrEqual(decimal.Zero) {
			logger.Warn("Ignoring invalid default rate",
				zap.String("pair", pair), zap.String("rate", raw))
			continue
		}
		rates[pair] = rate
	}

	targetChain := cfg.CrossChainTarget
	if targetChain == "" {
		targetChain = "BSC"
	}

	return &Engine{
		feeRate:     parseDecimal(cfg.FeeRate, defaultFeeRate),
		slippage:    parseDecimal(cfg.SlippageRate, defaultSlippage),
		pool:        cfg.LiquidityPool,
		targetChain: targetChain,
		supported:   supported,
		ledger:      ledgerClient,
		dex:         dexClient,
		fees:        fees,
		swaps:       swaps,
		locks:       keymutex.New(),
		logger:      logger,
		rates:       rates,
	}
}

// Rate returns the swap rate for a pair: the direct entry, the reciprocal of
// the reverse pair, or 1.0 when neither is known.
func (e *Engine) Rate(from, to string) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if rate, ok := e.rates[from+"/"+to]; ok {
		return rate
	}
	if reverse, ok := e.rates[to+"/"+from]; ok && !reverse.IsZero() {
		return one.Div(reverse)
	}
	return one
}

// Rates returns a snapshot of the current rate table
func (e *Engine) Rates() map[string]decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(e.rates))
	for pair, rate := range e.rates {
		out[pair] = rate
	}
	return out
}

func (e *Engine) setRate(pair string, rate decimal.Decimal) {
	e.mu.Lock()
	e.rates[pair] = rate
	e.mu.Unlock()
}

// ratePairs returns the pairs currently in the table
func (e *Engine) ratePairs() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pairs := make([]string, 0, len(e.rates))
	for pair := range e.rates {
		pairs = append(pairs, pair)
	}
	return pairs
}

// Breakdown is the decimal-exact math of one swap
type Breakdown struct {
	FromToken   string          `json:"fromToken"`
	ToToken     string          `json:"toToken"`
	FromAmount  decimal.Decimal `json:"fromAmount"`
	Rate        decimal.Decimal `json:"rate"`
	GrossAmount decimal.Decimal `json:"grossAmount"`
	Fee         decimal.Decimal `json:"fee"`
	ToAmount    decimal.Decimal `json:"toAmount"`
}

// Quote computes the swap breakdown: gross = amount x rate, fee = gross x
// feeRate, toAmount = gross - fee. Pure, no side effects.
func (e *Engine) Quote(amount decimal.Decimal, from, to string) *Breakdown {
	rate := e.Rate(from, to)
	gross := amount.Mul(rate)
	fee := gross.Mul(e.feeRate)
	return &Breakdown{
		FromToken:   from,
		ToToken:     to,
		FromAmount:  amount,
		Rate:        rate,
		GrossAmount: gross,
		Fee:         fee,
		ToAmount:    gross.Sub(fee),
	}
}

// Request describes a same-chain swap
type Request struct {
	Amount     decimal.Decimal
	FromToken  string
	ToToken    string
	Address    string
	SigningKey string
}

// Result reports an executed swap. FeeTransaction is nil when the fee leg was
// queued instead of sent inline.
type Result struct {
	Transaction    *ledger.Transaction `json:"transaction"`
	FeeTransaction *ledger.Transaction `json:"feeTransaction,omitempty"`
	FeeOutboxed    bool                `json:"feeOutboxed,omitempty"`
	Swap           *Breakdown          `json:"swap"`
}

// Execute performs a same-chain swap: the net amount moves to the liquidity
// pool and the fee portion is routed to the treasury best-effort. Concurrent
// swaps by the same address are serialized in-process; the ledger's atomic
// debit remains the authority on overdrafts.
func (e *Engine) Execute(ctx context.Context, req *Request) (*Result, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if !e.supported[req.FromToken] || !e.supported[req.ToToken] {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedPair, req.FromToken, req.ToToken)
	}

	e.locks.Lock(req.Address)
	defer e.locks.Unlock(req.Address)

	balance, err := e.ledger.Balance(ctx, req.Address)
	if err != nil {
		metrics.SwapsTotal.WithLabelValues("same_chain", "failed").Inc()
		return nil, fmt.Errorf("failed to check balance: %w", err)
	}
	if balance.LessThan(req.Amount) {
		return nil, ErrInsufficientFunds
	}

	breakdown := e.Quote(req.Amount, req.FromToken, req.ToToken)

	tx, err := e.ledger.SendTransaction(ctx, &ledger.SendRequest{
		From:       req.Address,
		To:         e.pool,
		Amount:     breakdown.ToAmount,
		SigningKey: req.SigningKey,
		Memo:       fmt.Sprintf("%s%s/%s", memoPrefix, req.FromToken, req.ToToken),
	})
	if err != nil {
		metrics.SwapsTotal.WithLabelValues("same_chain", "failed").Inc()
		return nil, fmt.Errorf("swap transfer failed: %w", err)
	}

	result := &Result{
		Transaction: tx,
		Swap:        breakdown,
	}

	feeRes, err := e.fees.RouteSwapFee(ctx, breakdown.Fee, req.Address, req.SigningKey, tx.Hash)
	if err != nil {
		e.logger.Warn("Swap fee routing failed",
			zap.String("address", req.Address),
			zap.String("tx_hash", tx.Hash),
			zap.Error(err))
	} else {
		result.FeeTransaction = feeRes.Transaction
		result.FeeOutboxed = feeRes.Outboxed
	}

	metrics.SwapsTotal.WithLabelValues("same_chain", "completed").Inc()
	metrics.SwapAmount.WithLabelValues(req.FromToken, req.ToToken).Observe(req.Amount.InexactFloat64())

	e.logger.Info("Swap executed",
		zap.String("address", req.Address),
		zap.String("pair", req.FromToken+"/"+req.ToToken),
		zap.String("from_amount", breakdown.FromAmount.String()),
		zap.String("to_amount", breakdown.ToAmount.String()),
		zap.String("fee", breakdown.Fee.String()))

	return result, nil
}

// DEXRequest describes a swap delegated to the market maker
type DEXRequest struct {
	TokenIn  string
	TokenOut string
	AmountIn decimal.Decimal
	Address  string
}

// DEXResult reports a market-maker settled swap
type DEXResult struct {
	AmountOut    decimal.Decimal `json:"amountOut"`
	MinAmountOut decimal.Decimal `json:"minAmountOut"`
	Fee          decimal.Decimal `json:"fee"`
	PriceImpact  decimal.Decimal `json:"priceImpact"`
}

// ExecuteViaDEX delegates a swap to the market maker with slippage
// protection: minAmountOut is the quote reduced by the configured slippage
// tolerance. Failures are returned to the caller, who may fall back to
// Execute.
func (e *Engine) ExecuteViaDEX(ctx context.Context, req *DEXRequest) (*DEXResult, error) {
	if req.AmountIn.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	quote, err := e.dex.QuoteAmountOut(ctx, req.TokenIn, req.TokenOut, req.AmountIn)
	if err != nil {
		metrics.SwapsTotal.WithLabelValues("dex", "failed").Inc()
		return nil, fmt.Errorf("dex quote failed: %w", err)
	}

	minAmountOut := quote.AmountOut.Mul(one.Sub(e.slippage))

	res, err := e.dex.Swap(ctx, &dex.SwapRequest{
		TokenIn:      req.TokenIn,
		TokenOut:     req.TokenOut,
		AmountIn:     req.AmountIn,
		MinAmountOut: minAmountOut,
		UserAddress:  req.Address,
	})
	if err != nil {
		metrics.SwapsTotal.WithLabelValues("dex", "failed").Inc()
		return nil, fmt.Errorf("dex swap failed: %w", err)
	}

	metrics.SwapsTotal.WithLabelValues("dex", "completed").Inc()
	metrics.SwapAmount.WithLabelValues(req.TokenIn, req.TokenOut).Observe(req.AmountIn.InexactFloat64())

	e.logger.Info("DEX swap executed",
		zap.String("address", req.Address),
		zap.String("pair", req.TokenIn+"/"+req.TokenOut),
		zap.String("amount_in", req.AmountIn.String()),
		zap.String("amount_out", res.AmountOut.String()))

	return &DEXResult{
		AmountOut:    res.AmountOut,
		MinAmountOut: minAmountOut,
		Fee:          res.Fee,
		PriceImpact:  res.PriceImpact,
	}, nil
}

// CrossChainRequest describes a native-to-BSC conversion
type CrossChainRequest struct {
	Amount     decimal.Decimal
	Address    string
	SigningKey string
}

// CrossChainResult reports a cross-chain swap. Delivered is false when the
// destination leg could not be confirmed; the persisted record is then the
// manual-reconciliation entry.
type CrossChainResult struct {
	LockTransaction *ledger.Transaction `json:"lockTransaction"`
	Record          *records.SwapRecord `json:"record"`
	Delivered       bool                `json:"delivered"`
	TransferTxHash  string              `json:"transferTransactionHash,omitempty"`
}

// ExecuteCrossChainToBSC locks the full amount on the native ledger, then
// asks the market maker to deliver the wrapped asset on the target chain
// best-effort. The lock is irreversible: a failed destination leg is recorded
// as a pending swap, never rolled back or retried automatically.
func (e *Engine) ExecuteCrossChainToBSC(ctx context.Context, req *CrossChainRequest) (*CrossChainResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	e.locks.Lock(req.Address)
	defer e.locks.Unlock(req.Address)

	balance, err := e.ledger.Balance(ctx, req.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to check balance: %w", err)
	}
	if balance.LessThan(req.Amount) {
		return nil, ErrInsufficientFunds
	}

	lockAddress := "swap-lock-" + uuid.New().String()
	lockTx, err := e.ledger.SendTransaction(ctx, &ledger.SendRequest{
		From:       req.Address,
		To:         lockAddress,
		Amount:     req.Amount,
		SigningKey: req.SigningKey,
		Memo:       memoPrefix + "lock:" + e.targetChain,
	})
	if err != nil {
		metrics.SwapsTotal.WithLabelValues("cross_chain", "failed").Inc()
		return nil, fmt.Errorf("lock transfer failed: %w", err)
	}

	rate := e.Rate(tokenNative, tokenWrapped)
	toAmount := req.Amount.Mul(rate)

	status := records.SwapCompleted
	delivered := true
	transferTxHash := ""
	res, err := e.dex.RequestTransfer(ctx, &dex.TransferRequest{
		Token:       tokenWrapped,
		Amount:      toAmount,
		Recipient:   req.Address,
		TargetChain: e.targetChain,
	})
	if err != nil {
		status = records.SwapPending
		delivered = false
		e.logger.Warn("Cross-chain delivery unconfirmed, recording pending swap",
			zap.String("address", req.Address),
			zap.String("lock_tx", lockTx.Hash),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
	} else {
		transferTxHash = res.TransactionHash
	}

	rec := &records.SwapRecord{
		ID:          uuid.New().String(),
		Address:     req.Address,
		FromToken:   tokenNative,
		ToToken:     tokenWrapped,
		FromAmount:  req.Amount,
		ToAmount:    toAmount,
		Rate:        rate,
		Fee:         decimal.Zero,
		CrossChain:  true,
		TargetChain: e.targetChain,
		LockTxHash:  lockTx.Hash,
		Status:      status,
		CreatedAt:   time.Now(),
	}
	if err := e.swaps.CreateSwapRecord(ctx, rec); err != nil {
		// The lock already happened; keep the trail in the logs so the swap
		// can still be reconciled by hand.
		metrics.ErrorsTotal.WithLabelValues("swap", "record_persist").Inc()
		e.logger.Error("Failed to persist swap record",
			zap.String("address", req.Address),
			zap.String("lock_tx", lockTx.Hash),
			zap.String("amount", req.Amount.String()),
			zap.String("status", string(status)),
			zap.Error(err))
	}

	metrics.SwapsTotal.WithLabelValues("cross_chain", string(status)).Inc()
	metrics.SwapAmount.WithLabelValues(tokenNative, tokenWrapped).Observe(req.Amount.InexactFloat64())

	return &CrossChainResult{
		LockTransaction: lockTx,
		Record:          rec,
		Delivered:       delivered,
		TransferTxHash:  transferTxHash,
	}, nil
}

// PendingSwaps returns the unreconciled cross-chain swaps of an address
func (e *Engine) PendingSwaps(ctx context.Context, address string) ([]*records.SwapRecord, error) {
	return e.swaps.ListSwapRecords(ctx,
		store.WithAddress(address),
		store.WithSwapStatus(records.SwapPending))
}

// History returns the swap-tagged ledger transactions of an address
func (e *Engine) History(ctx context.Context, address string) ([]ledger.HistoryEntry, error) {
	entries, err := e.ledger.TransactionHistory(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction history: %w", err)
	}

	swaps := make([]ledger.HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Data, memoPrefix) {
			swaps = append(swaps, entry)
		}
	}
	return swaps, nil
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
