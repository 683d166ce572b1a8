// Package feerouter computes protocol fees and forwards them to the treasury
// address. Fee delivery is best-effort for callers: a failed delivery lands in
// the durable fee outbox instead of failing the parent operation.
package feerouter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nexchain-labs/asset-gateway/internal/metrics"
	"github.com/nexchain-labs/asset-gateway/pkg/config"
	"github.com/nexchain-labs/asset-gateway/pkg/ledger"
	"github.com/nexchain-labs/asset-gateway/pkg/records"
	"github.com/nexchain-labs/asset-gateway/pkg/store"
)

var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrAmountBelowFee    = errors.New("amount does not cover the minimum fee")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrEmptyTreasury     = errors.New("treasury address cannot be empty")
)

// fallbackTreasuryAddress receives fees when no treasury address was ever
// configured or persisted.
const fallbackTreasuryAddress = "nch1treasury000000000000000000000000"

// treasuryAddressKey is the gateway_settings key holding the treasury address.
const treasuryAddressKey = "treasury_address"

var (
	defaultRate   = decimal.RequireFromString("0.001")
	defaultMinFee = decimal.RequireFromString("0.01")
	defaultMaxFee = decimal.RequireFromString("10")
)

// LedgerClient defines the ledger operations fee routing needs.
type LedgerClient interface {
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
	SendTransaction(ctx context.Context, req *ledger.SendRequest) (*ledger.Transaction, error)
	TransactionHistory(ctx context.Context, address string) ([]ledger.HistoryEntry, error)
}

// Router routes protocol fees to the treasury
type Router struct {
	cfg      *config.FeesConfig
	rate     decimal.Decimal
	minFee   decimal.Decimal
	maxFee   decimal.Decimal
	ledger   LedgerClient
	settings store.SettingsStore
	outbox   store.FeeOutboxStore
	logger   *zap.Logger

	mu       sync.RWMutex
	treasury string // resolved once, then owned for the router's lifetime
}

// NewRouter creates a fee router
func NewRouter(
	cfg *config.FeesConfig,
	ledgerClient LedgerClient,
	settings store.SettingsStore,
	outbox store.FeeOutboxStore,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:      cfg,
		rate:     parseDecimal(cfg.Rate, defaultRate),
		minFee:   parseDecimal(cfg.MinFee, defaultMinFee),
		maxFee:   parseDecimal(cfg.MaxFee, defaultMaxFee),
		ledger:   ledgerClient,
		settings: settings,
		outbox:   outbox,
		logger:   logger,
	}
}

// Quote is the fee breakdown of a prospective transfer
type Quote struct {
	Fee       decimal.Decimal `json:"fee"`
	NetAmount decimal.Decimal `json:"netAmount"`
}

// QuoteTransactionFee computes the transfer fee: amount x rate, clamped to
// [minFee, maxFee]. Pure, no side effects.
func (r *Router) QuoteTransactionFee(amount decimal.Decimal) Quote {
	fee := amount.Mul(r.rate)
	if fee.LessThan(r.minFee) {
		fee = r.minFee
	}
	if fee.GreaterThan(r.maxFee) {
		fee = r.maxFee
	}
	return Quote{Fee: fee, NetAmount: amount.Sub(fee)}
}

// SendRequest describes a fee-bearing transfer
type SendRequest struct {
	From       string
	To         string
	Amount     decimal.Decimal
	SigningKey string
	Memo       string
}

// SendResult reports the outcome of a fee-bearing transfer. FeeTransaction is
// nil when the fee leg was queued for later delivery instead of sent inline.
type SendResult struct {
	Transaction    *ledger.Transaction `json:"transaction"`
	FeeTransaction *ledger.Transaction `json:"feeTransaction,omitempty"`
	Fee            decimal.Decimal     `json:"fee"`
	NetAmount      decimal.Decimal     `json:"netAmount"`
	OriginalAmount decimal.Decimal     `json:"originalAmount"`
	FeeOutboxed    bool                `json:"feeOutboxed,omitempty"`
}

// SendWithFee transfers req.Amount minus the fee to the recipient and routes
// the fee to the treasury. The fee is deducted from the transfer, so the
// sender needs a balance of req.Amount, the recipient receives the net amount,
// and net plus fee equals req.Amount exactly. The fee leg never fails the
// transfer.
func (r *Router) SendWithFee(ctx context.Context, req *SendRequest) (*SendResult, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	quote := r.QuoteTransactionFee(req.Amount)
	if quote.NetAmount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrAmountBelowFee
	}

	balance, err := r.ledger.Balance(ctx, req.From)
	if err != nil {
		return nil, fmt.Errorf("failed to check balance: %w", err)
	}
	if balance.LessThan(req.Amount) {
		return nil, ErrInsufficientFunds
	}

	tx, err := r.ledger.SendTransaction(ctx, &ledger.SendRequest{
		From:       req.From,
		To:         req.To,
		Amount:     quote.NetAmount,
		SigningKey: req.SigningKey,
		Memo:       req.Memo,
	})
	if err != nil {
		return nil, fmt.Errorf("transfer failed: %w", err)
	}

	result := &SendResult{
		Transaction:    tx,
		Fee:            quote.Fee,
		NetAmount:      quote.NetAmount,
		OriginalAmount: req.Amount,
	}

	feeRes, err := r.routeFee(ctx, records.FeeKindTransaction, tx.Hash, req.From, quote.Fee, req.SigningKey)
	if err != nil {
		r.logger.Warn("Fee routing failed",
			zap.String("kind", string(records.FeeKindTransaction)),
			zap.String("parent_tx", tx.Hash),
			zap.Error(err))
		return result, nil
	}
	result.FeeTransaction = feeRes.Transaction
	result.FeeOutboxed = feeRes.Outboxed

	return result, nil
}

// FeeResult reports how a routed fee was handled
type FeeResult struct {
	// Transaction is set when the fee was delivered inline.
	Transaction *ledger.Transaction
	// Outboxed is true when delivery failed and the fee was queued for the
	// outbox worker instead.
	Outboxed bool
}

// RouteSwapFee routes a swap fee to the treasury, tagged swap_fee. An error
// means the fee could be neither delivered nor queued; callers are expected to
// log it and continue.
func (r *Router) RouteSwapFee(ctx context.Context, amount decimal.Decimal, from, signingKey, parentOpID string) (*FeeResult, error) {
	return r.routeFee(ctx, records.FeeKindSwap, parentOpID, from, amount, signingKey)
}

// RouteBridgeFee routes a bridge fee to the treasury, tagged bridge_fee
func (r *Router) RouteBridgeFee(ctx context.Context, amount decimal.Decimal, from, signingKey, parentOpID string) (*FeeResult, error) {
	return r.routeFee(ctx, records.FeeKindBridge, parentOpID, from, amount, signingKey)
}

// routeFee attempts the fee transfer inline and falls back to the durable
// outbox on failure. The treasury destination is resolved at delivery time.
func (r *Router) routeFee(ctx context.Context, kind records.FeeKind, parentOpID, from string, amount decimal.Decimal, signingKey string) (*FeeResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return &FeeResult{}, nil
	}

	treasury := r.TreasuryAddress(ctx)

	tx, sendErr := r.ledger.SendTransaction(ctx, &ledger.SendRequest{
		From:       from,
		To:         treasury,
		Amount:     amount,
		SigningKey: signingKey,
		Memo:       string(kind),
	})
	if sendErr == nil {
		metrics.FeesRoutedTotal.WithLabelValues(string(kind), "delivered").Inc()
		return &FeeResult{Transaction: tx}, nil
	}

	entry := &records.FeeOutboxEntry{
		ID:            uuid.New().String(),
		Kind:          kind,
		ParentOpID:    parentOpID,
		FromAddress:   from,
		Amount:        amount,
		SigningKey:    signingKey,
		Status:        records.OutboxPending,
		NextAttemptAt: time.Now(),
	}
	if err := r.outbox.EnqueueFee(ctx, entry); err != nil {
		metrics.FeesRoutedTotal.WithLabelValues(string(kind), "lost").Inc()
		return nil, fmt.Errorf("fee delivery failed (%v) and outbox enqueue failed: %w", sendErr, err)
	}

	metrics.FeesRoutedTotal.WithLabelValues(string(kind), "outboxed").Inc()
	r.logger.Warn("Fee delivery failed, queued for retry",
		zap.String("kind", string(kind)),
		zap.String("outbox_id", entry.ID),
		zap.String("parent_op", parentOpID),
		zap.String("amount", amount.String()),
		zap.Error(sendErr))

	return &FeeResult{Outboxed: true}, nil
}

// IncomeStats aggregates fees received by the treasury, grouped by fee kind
type IncomeStats struct {
	Address      string                     `json:"address"`
	TotalIncome  decimal.Decimal            `json:"totalIncome"`
	ByKind       map[string]decimal.Decimal `json:"byKind"`
	Transactions int                        `json:"transactions"`
}

// TreasuryStats scans the treasury's transaction history and sums incoming
// fee transfers by their kind tag. An empty address means the current
// treasury.
func (r *Router) TreasuryStats(ctx context.Context, address string) (*IncomeStats, error) {
	if address == "" {
		address = r.TreasuryAddress(ctx)
	}

	history, err := r.ledger.TransactionHistory(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch treasury history: %w", err)
	}

	stats := &IncomeStats{
		Address:     address,
		TotalIncome: decimal.Zero,
		ByKind: map[string]decimal.Decimal{
			string(records.FeeKindTransaction): decimal.Zero,
			string(records.FeeKindSwap):        decimal.Zero,
			string(records.FeeKindBridge):      decimal.Zero,
		},
	}

	for _, entry := range history {
		if entry.To != address {
			continue
		}
		if _, ok := stats.ByKind[entry.Data]; !ok {
			continue
		}
		stats.ByKind[entry.Data] = stats.ByKind[entry.Data].Add(entry.Amount)
		stats.TotalIncome = stats.TotalIncome.Add(entry.Amount)
		stats.Transactions++
	}

	return stats, nil
}

// TreasuryAddress resolves the treasury address: the persisted setting first,
// then the configured address, then the compiled-in fallback. The resolved
// value is cached for the router's lifetime.
func (r *Router) TreasuryAddress(ctx context.Context) string {
	r.mu.RLock()
	cached := r.treasury
	r.mu.RUnlock()
	if cached != "" {
		return cached
	}

	value, err := r.settings.GetSetting(ctx, treasuryAddressKey)
	if err != nil {
		if !errors.Is(err, store.ErrSettingNotFound) {
			// Transient store failure: fall back without caching so the
			// persisted address wins once the store recovers.
			r.logger.Warn("Failed to read treasury address setting", zap.Error(err))
			return r.configuredTreasury()
		}
		value = r.configuredTreasury()
	}

	r.mu.Lock()
	r.treasury = value
	r.mu.Unlock()
	return value
}

// SetTreasuryAddress persists a new treasury address and updates the cache
func (r *Router) SetTreasuryAddress(ctx context.Context, address string) error {
	if address == "" {
		return ErrEmptyTreasury
	}

	if err := r.settings.SetSetting(ctx, treasuryAddressKey, address); err != nil {
		return fmt.Errorf("failed to persist treasury address: %w", err)
	}

	r.mu.Lock()
	r.treasury = address
	r.mu.Unlock()

	r.logger.Info("Treasury address updated", zap.String("address", address))
	return nil
}

func (r *Router) configuredTreasury() string {
	if r.cfg.TreasuryAddress != "" {
		return r.cfg.TreasuryAddress
	}
	return fallbackTreasuryAddress
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
