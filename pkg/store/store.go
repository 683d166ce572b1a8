// Package store persists bridge, swap and fee-routing records in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nexchain-labs/asset-gateway/pkg/records"
)

var (
	// ErrBridgeRecordNotFound is returned when a bridge record lookup finds no match.
	ErrBridgeRecordNotFound = errors.New("bridge record not found")
	// ErrSettingNotFound is returned when a settings key has never been written.
	ErrSettingNotFound = errors.New("setting not found")
	// ErrHashCompleted rejects a bridge-in claim whose source transaction hash
	// has already been minted against.
	ErrHashCompleted = errors.New("source transaction already processed")
	// ErrHashInFlight rejects a bridge-in claim while another claim for the
	// same source transaction hash is still pending.
	ErrHashInFlight = errors.New("bridge-in for source transaction already in flight")
)

// Store defines the persistence operations of the gateway
type Store interface {
	BridgeStore
	SwapStore
	FeeOutboxStore
	SettingsStore

	// ArchiveRecords stamps archived_at on settled records older than the
	// cutoff. Records are never deleted. Returns the number of bridge and
	// swap records archived.
	ArchiveRecords(ctx context.Context, before time.Time) (int64, int64, error)
}

// BridgeStore defines bridge record persistence
type BridgeStore interface {
	CreateBridgeRecord(ctx context.Context, rec *records.BridgeRecord) error
	// ClaimBridgeIn inserts the pending record for a bridge-in, enforcing one
	// live claim per source transaction hash. A completed record rejects the
	// claim with ErrHashCompleted; a pending one with ErrHashInFlight; a
	// failed record is re-claimed atomically so exactly one retry proceeds.
	ClaimBridgeIn(ctx context.Context, rec *records.BridgeRecord) error
	CompleteBridgeIn(ctx context.Context, id, nativeTxHash string, verification json.RawMessage) error
	// MarkBridgeMintPending keeps a verified claim in pending with the mint
	// error attached, as the operator review queue.
	MarkBridgeMintPending(ctx context.Context, id, errMsg string) error
	MarkBridgeFailed(ctx context.Context, id, errMsg string) error
	BridgeRecordBySourceHash(ctx context.Context, sourceTxHash string) (*records.BridgeRecord, error)
	// BridgeRecordByHash looks a record up by source or native transaction hash.
	BridgeRecordByHash(ctx context.Context, txHash string) (*records.BridgeRecord, error)
	ListBridgeRecords(ctx context.Context, opts ...QueryOption) ([]*records.BridgeRecord, error)
	BridgeStats(ctx context.Context) (*records.BridgeStats, error)
}

// SwapStore defines swap record persistence
type SwapStore interface {
	CreateSwapRecord(ctx context.Context, rec *records.SwapRecord) error
	ListSwapRecords(ctx context.Context, opts ...QueryOption) ([]*records.SwapRecord, error)
}

// FeeOutboxStore defines the durable fee outbox
type FeeOutboxStore interface {
	EnqueueFee(ctx context.Context, entry *records.FeeOutboxEntry) error
	DueFeeEntries(ctx context.Context, now time.Time, limit int) ([]*records.FeeOutboxEntry, error)
	MarkFeeDelivered(ctx context.Context, id, txHash string) error
	MarkFeeRetry(ctx context.Context, id string, nextAttemptAt time.Time, lastErr string) error
	MarkFeeFailed(ctx context.Context, id, lastErr string) error
	CountPendingFees(ctx context.Context) (int, error)
}

// SettingsStore defines key/value settings persistence
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// QueryOptions defines filters for record listings
type QueryOptions struct {
	Direction       *records.BridgeDirection
	BridgeStatus    *records.BridgeStatus
	SwapStatus      *records.SwapStatus
	Address         *string
	IncludeArchived bool
	Limit           int
}

// QueryOption is a functional option for record listings
type QueryOption func(*QueryOptions)

// WithDirection filters bridge records by direction
func WithDirection(direction records.BridgeDirection) QueryOption {
	return func(opts *QueryOptions) {
		opts.Direction = &direction
	}
}

// WithBridgeStatus filters bridge records by status
func WithBridgeStatus(status records.BridgeStatus) QueryOption {
	return func(opts *QueryOptions) {
		opts.BridgeStatus = &status
	}
}

// WithSwapStatus filters swap records by status
func WithSwapStatus(status records.SwapStatus) QueryOption {
	return func(opts *QueryOptions) {
		opts.SwapStatus = &status
	}
}

// WithAddress filters swap records by the initiating address
func WithAddress(address string) QueryOption {
	return func(opts *QueryOptions) {
		opts.Address = &address
	}
}

// WithArchived includes archived records in the listing
func WithArchived() QueryOption {
	return func(opts *QueryOptions) {
		opts.IncludeArchived = true
	}
}

// WithLimit caps the number of returned records
func WithLimit(limit int) QueryOption {
	return func(opts *QueryOptions) {
		opts.Limit = limit
	}
}
