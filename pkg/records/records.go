// Package records holds the persisted domain types shared by the bridge,
// swap and fee-routing services.
package records

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ChainNative is the chain name of the native ledger
const ChainNative = "NATIVE"

// BridgeDirection represents the direction of a bridge transfer
type BridgeDirection string

const (
	// DirectionOut moves value from the native ledger to an external chain
	DirectionOut BridgeDirection = "out"
	// DirectionIn moves value from an external chain onto the native ledger
	DirectionIn BridgeDirection = "in"
)

// BridgeStatus represents the lifecycle state of a bridge transfer
type BridgeStatus string

const (
	BridgePending   BridgeStatus = "pending"
	BridgeCompleted BridgeStatus = "completed"
	BridgeFailed    BridgeStatus = "failed"
)

// SwapStatus represents the lifecycle state of a cross-chain swap
type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapCompleted SwapStatus = "completed"
)

// FeeKind tags a routed fee with the operation that produced it. The tag is
// written into the ledger memo so treasury history can be aggregated by kind.
type FeeKind string

const (
	FeeKindTransaction FeeKind = "transaction_fee"
	FeeKindSwap        FeeKind = "swap_fee"
	FeeKindBridge      FeeKind = "bridge_fee"
)

// OutboxStatus represents the delivery state of a fee outbox entry
type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "pending"
	OutboxDelivered OutboxStatus = "delivered"
	OutboxFailed    OutboxStatus = "failed"
)

// BridgeRecord is the audit record of one bridge transfer. Records are
// mutated in place as steps succeed or fail and are never deleted; retention
// marks ArchivedAt instead.
type BridgeRecord struct {
	ID               string          `json:"id"`
	Direction        BridgeDirection `json:"direction"`
	FromChain        string          `json:"fromChain"`
	ToChain          string          `json:"toChain"`
	Amount           decimal.Decimal `json:"amount"`
	Fee              decimal.Decimal `json:"fee"`
	NetAmount        decimal.Decimal `json:"netAmount"`
	RecipientAddress string          `json:"recipientAddress,omitempty"`
	SourceTxHash     string          `json:"sourceTransactionHash,omitempty"`
	NativeTxHash     string          `json:"nativeTransactionHash,omitempty"`
	Status           BridgeStatus    `json:"status"`
	Verification     json.RawMessage `json:"verificationPayload,omitempty"`
	ErrorMessage     string          `json:"error,omitempty"`
	Note             string          `json:"note,omitempty"`
	CreatedAt        time.Time       `json:"timestamp"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	ArchivedAt       *time.Time      `json:"archivedAt,omitempty"`
}

// SwapRecord is the reconciliation record of a cross-chain swap. A pending
// record marks a swap whose destination leg could not be confirmed.
type SwapRecord struct {
	ID          string          `json:"id"`
	Address     string          `json:"address"`
	FromToken   string          `json:"fromToken"`
	ToToken     string          `json:"toToken"`
	FromAmount  decimal.Decimal `json:"fromAmount"`
	ToAmount    decimal.Decimal `json:"toAmount"`
	Rate        decimal.Decimal `json:"rate"`
	Fee         decimal.Decimal `json:"fee"`
	CrossChain  bool            `json:"crossChain"`
	TargetChain string          `json:"targetChain,omitempty"`
	LockTxHash  string          `json:"lockTransactionHash,omitempty"`
	Status      SwapStatus      `json:"status"`
	CreatedAt   time.Time       `json:"timestamp"`
}

// FeeOutboxEntry is a fee transfer awaiting delivery to the treasury. The
// destination is resolved at delivery time so a treasury change applies to
// queued fees as well.
type FeeOutboxEntry struct {
	ID              string
	Kind            FeeKind
	ParentOpID      string
	FromAddress     string
	Amount          decimal.Decimal
	SigningKey      string
	Status          OutboxStatus
	Attempts        int
	NextAttemptAt   time.Time
	DeliveredTxHash string
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BridgeStats aggregates the bridge history
type BridgeStats struct {
	TotalBridges int64            `json:"totalBridges"`
	TotalBridged decimal.Decimal  `json:"totalBridged"`
	TotalFees    decimal.Decimal  `json:"totalFees"`
	ByDirection  map[string]int64 `json:"byDirection"`
	ByChain      map[string]int64 `json:"byChain"`
}
